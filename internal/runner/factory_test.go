package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

func TestMakeRunnerList_DefaultPorts(t *testing.T) {
	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	runners, err := MakeRunnerList(FleetConfig{Addresses: addrs, User: "ubuntu"}, WithLogger(logger.Noop()))
	require.NoError(t, err)

	require.Len(t, runners, 3)
	assert.Equal(t, addrs, runners.Addresses())
	for _, r := range runners {
		assert.Equal(t, 22, r.Port())
		assert.Equal(t, "ubuntu", r.Identity().User)
	}
}

func TestMakeRunnerList_PortMismatch(t *testing.T) {
	for n := 1; n <= 5; n++ {
		addrs := make([]string, n)
		for i := range addrs {
			addrs[i] = fmt.Sprintf("10.0.0.%d", i+1)
		}
		for _, ports := range [][]int{make([]int, n+1), make([]int, n-1), {}} {
			if len(ports) == n {
				continue
			}
			_, err := MakeRunnerList(FleetConfig{Addresses: addrs, Ports: ports})
			assert.True(t, errors.IsCode(err, errors.ErrUsage), "n=%d ports=%d", n, len(ports))
		}
	}
}

func TestMakeRunnerList_Empty(t *testing.T) {
	_, err := MakeRunnerList(FleetConfig{})
	assert.True(t, errors.IsCode(err, errors.ErrUsage))
}

func TestMakeRunnerList_PerHostPortsAndControlNames(t *testing.T) {
	runners, err := MakeRunnerList(FleetConfig{
		Addresses:    []string{"head", "head", "worker"},
		Ports:        []int{22, 2222, 22},
		User:         "u",
		PrivateKey:   "/keys/k",
		ControlName:  "cluster",
		ProxyCommand: "ssh -W %h:%p bastion",
	}, WithLogger(logger.Noop()))
	require.NoError(t, err)

	assert.Equal(t, []int{22, 2222, 22}, []int{runners[0].Port(), runners[1].Port(), runners[2].Port()})

	names := map[string]bool{}
	for _, r := range runners {
		require.NotEmpty(t, r.ControlName())
		names[r.ControlName()] = true
		assert.Equal(t, "ssh -W %h:%p bastion", r.Identity().ProxyCommand)
		assert.Equal(t, "/keys/k", r.Identity().PrivateKey)
	}
	assert.Len(t, names, 3, "every host gets its own control socket")
	assert.Equal(t, sshutil.HashControlName("cluster-head-2222"), runners[1].ControlName())
}

func TestMakeRunnerList_NoControlName(t *testing.T) {
	runners, err := MakeRunnerList(FleetConfig{Addresses: []string{"a", "b"}}, WithLogger(logger.Noop()))
	require.NoError(t, err)
	for _, r := range runners {
		assert.Empty(t, r.ControlName())
	}
}

func TestMakeRunnerList_NegativePort(t *testing.T) {
	_, err := MakeRunnerList(FleetConfig{Addresses: []string{"a"}, Ports: []int{-5}})
	assert.True(t, errors.IsCode(err, errors.ErrUsage))
}

func TestCollection_ConcurrentRuns(t *testing.T) {
	runners, err := MakeRunnerList(FleetConfig{
		Addresses:   []string{"node-a", "node-b", "node-c", "node-d"},
		ControlName: "c",
	},
		WithLogger(logger.Noop()),
		WithSSHBinary(fakeSSH(t)),
		WithControlRegistry(sshutil.NewControlRegistry(t.TempDir())),
	)
	require.NoError(t, err)

	results := make([]Result, len(runners))
	errs := make([]error, len(runners))

	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		go func(i int, r *Runner) {
			defer wg.Done()
			cmd := fmt.Sprintf("for n in 1 2 3 4 5; do printf %s; done; printf err-%d >&2; exit %d", r.Address(), i, 10+i)
			results[i], errs[i] = r.RunCaptured(context.Background(), Shell(cmd), RunOptions{SeparateStderr: true})
		}(i, r)
	}
	wg.Wait()

	for i, r := range runners {
		require.NoError(t, errs[i])
		assert.Equal(t, 10+i, results[i].ExitCode)
		want := ""
		for n := 0; n < 5; n++ {
			want += r.Address()
		}
		assert.Equal(t, want, results[i].Stdout)
		assert.Equal(t, fmt.Sprintf("err-%d", i), results[i].Stderr)
	}
}
