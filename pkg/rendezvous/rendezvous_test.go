package rendezvous

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishAndDiscover(t *testing.T) {
	dir := t.TempDir()

	handle, err := Publish(dir, Info{PID: 1234, SocketPath: "/tmp/bridge.sock", WorkspaceRoot: "/work", Version: "0.1.0"})
	require.NoError(t, err)
	defer handle.Close()

	infos, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, 1234, infos[0].PID)
	require.Equal(t, "/tmp/bridge.sock", infos[0].SocketPath)
}

func TestPublishRefusesDoubleLock(t *testing.T) {
	dir := t.TempDir()

	first, err := Publish(dir, Info{PID: 1, SocketPath: "/tmp/a.sock"})
	require.NoError(t, err)
	defer first.Close()

	_, err = Publish(dir, Info{PID: 1, SocketPath: "/tmp/b.sock"})
	require.Error(t, err)
}

func TestCloseRemovesLockFile(t *testing.T) {
	dir := t.TempDir()

	handle, err := Publish(dir, Info{PID: 42, SocketPath: "/tmp/a.sock"})
	require.NoError(t, err)

	path := filepath.Join(dir, "42.lock")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, handle.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Idempotent.
	require.NoError(t, handle.Close())
}

func TestDiscoverEmptyDirMissing(t *testing.T) {
	infos, err := Discover(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestWatchSeesExistingAndNewLockFiles(t *testing.T) {
	dir := t.TempDir()

	first, err := Publish(dir, Info{PID: 1, SocketPath: "/tmp/a.sock"})
	require.NoError(t, err)
	defer first.Close()

	found := make(chan Info, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = Watch(ctx, dir, func(info Info) { found <- info })
	}()

	select {
	case info := <-found:
		require.Equal(t, 1, info.PID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for existing lock file")
	}

	second, err := Publish(dir, Info{PID: 2, SocketPath: "/tmp/b.sock"})
	require.NoError(t, err)
	defer second.Close()

	select {
	case info := <-found:
		require.Equal(t, 2, info.PID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for new lock file")
	}
}
