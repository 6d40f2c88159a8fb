package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
)

func TestFakeSyncer_Success(t *testing.T) {
	syncer := NewFakeSyncer()

	err := syncer.Sync(context.Background(), fsync.Remote{Address: "h"}, fsync.Request{Source: "/a", Target: "/b", Up: true})

	require.NoError(t, err)
	assert.Equal(t, 1, syncer.CallCount())
}

func TestFakeSyncer_Failure(t *testing.T) {
	expectedErr := errors.New(errors.ErrSync, "sync failed", "try again")
	syncer := NewFakeSyncer().SetFail(expectedErr)

	err := syncer.Sync(context.Background(), fsync.Remote{Address: "h"}, fsync.Request{})

	assert.Equal(t, expectedErr, err)
}

func TestFakeSyncer_Progress(t *testing.T) {
	syncer := NewFakeSyncer().SetProgress(
		"sending incremental file list",
		"      2,048 100%  1.00MB/s    0:00:00 (xfr#1, to-chk=0/1)",
	)

	var buf bytes.Buffer
	var pct []int
	err := syncer.Sync(context.Background(), fsync.Remote{Address: "h"}, fsync.Request{
		Progress:   &buf,
		OnProgress: func(p fsync.Progress) { pct = append(pct, p.Percent) },
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sending incremental file list")
	assert.Equal(t, []int{100}, pct)
}

func TestFakeSyncer_RecordsCalls(t *testing.T) {
	syncer := NewFakeSyncer()

	err := syncer.Sync(context.Background(),
		fsync.Remote{Name: "worker-1", Address: "10.0.0.2"},
		fsync.Request{Source: "~/out", Target: "./out", Excludes: []string{"*.tmp"}})
	require.NoError(t, err)

	call := syncer.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "worker-1", call.Remote.Name)
	assert.Equal(t, "~/out", call.Request.Source)
	assert.False(t, call.Request.Up)
	assert.Equal(t, []string{"*.tmp"}, call.Request.Excludes)
}

func TestFakeSyncer_Reset(t *testing.T) {
	syncer := NewFakeSyncer()

	_ = syncer.Sync(context.Background(), fsync.Remote{}, fsync.Request{})
	assert.Equal(t, 1, syncer.CallCount())

	syncer.Reset()
	assert.Equal(t, 0, syncer.CallCount())
	assert.Nil(t, syncer.LastCall())
}
