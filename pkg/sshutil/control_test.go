package sshutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

func TestControlRegistry_Ensure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ctl")
	reg := NewControlRegistry(root)

	key := ControlKey{User: "ubuntu", Host: "10.0.0.1", Port: 22, Name: HashControlName("c")}
	dir, err := reg.Ensure(key)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, key.Name), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	again, err := reg.Ensure(key)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	assert.Len(t, reg.Entries(), 1)
}

func TestControlRegistry_EmptyName(t *testing.T) {
	reg := NewControlRegistry(t.TempDir())
	_, err := reg.Ensure(ControlKey{Host: "h"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUsage))
}

func TestControlRegistry_Concurrent(t *testing.T) {
	reg := NewControlRegistry(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the goroutines share a key.
			key := ControlKey{Host: "h", Port: 22 + i%2, Name: "shared"}
			_, err := reg.Ensure(key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries := reg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 22, entries[0].Port)
	assert.Equal(t, 23, entries[1].Port)
}

func TestControlKey_String(t *testing.T) {
	assert.Equal(t, "ubuntu@head:22/abc", ControlKey{User: "ubuntu", Host: "head", Port: 22, Name: "abc"}.String())
	assert.Equal(t, "head:2222/abc", ControlKey{Host: "head", Port: 2222, Name: "abc"}.String())
}

func TestDefaultControlRoot(t *testing.T) {
	t.Setenv("USER", "alice")
	assert.Equal(t, "/tmp/fleetrun_ssh_alice", DefaultControlRoot())
}
