// Package rendezvous implements the filesystem discovery mechanism the
// assistant CLI uses to find a running editor bridge (spec.md §1,
// "The assistant discovers the editor through a filesystem
// rendezvous"). The actual discovery handshake the production
// assistant speaks is an external collaborator out of scope for this
// repository (spec.md §1); this package exists to the depth needed to
// publish and watch for a lock file in tests and from `cmd/bridge serve`.
package rendezvous

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/fsnotify/fsnotify"
)

// Info is the content of one lock file: enough for the assistant CLI to
// open a connection to this editor bridge process. It is deliberately
// written as YAML rather than the ambient JSON config format, so an
// operator can `cat` it directly (SPEC_FULL.md §11).
type Info struct {
	PID           int    `yaml:"pid"`
	SocketPath    string `yaml:"socket_path"`
	WorkspaceRoot string `yaml:"workspace_root"`
	Version       string `yaml:"version"`
	StartedAt     string `yaml:"started_at"`
}

// lockFileName returns the lock file's name for a given pid, so a
// watcher can tell two processes' lock files apart in the same
// rendezvous directory.
func lockFileName(pid int) string {
	return fmt.Sprintf("%d.lock", pid)
}

// Handle is a published lock file, live for as long as the owning
// process holds it. Close removes the lock file and releases the
// advisory lock.
type Handle struct {
	path string
	fl   *flock.Flock
}

// Publish writes info as a YAML lock file under dir and holds an
// exclusive advisory lock (via flock) on it until Close, so a second
// Publish for the same file fails instead of overwriting it. Discover
// and Watch read lock files without taking that lock. The caller must
// call Close on the returned Handle when the bridge shuts down.
func Publish(dir string, info Info) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rendezvous: create dir: %w", err)
	}

	path := filepath.Join(dir, lockFileName(info.PID))
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("rendezvous: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("rendezvous: %s is already locked by another process", path)
	}

	data, err := yaml.Marshal(info)
	if err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("rendezvous: marshal info: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("rendezvous: write %s: %w", path, err)
	}

	return &Handle{path: path, fl: fl}, nil
}

// Close removes the lock file and releases the advisory lock. It is
// idempotent.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	_ = h.fl.Unlock()
	err := os.Remove(h.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rendezvous: remove %s: %w", h.path, err)
	}
	return nil
}

// Discover reads every currently-published lock file under dir. A lock
// file that fails to parse (e.g. another process is mid-write despite
// the flock discipline, on a filesystem where advisory locks are not
// observed by a plain read) is skipped rather than failing the whole
// scan.
func Discover(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rendezvous: read dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lock" {
			continue
		}
		info, err := readLockFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func readLockFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Watch blocks, invoking onFound once for every lock file already
// present in dir and again on every later create or write event for a
// lock file (so a new file can be reported more than once), until ctx
// is cancelled. This lets a second process discover the
// editor bridge coming up without polling (SPEC_FULL.md §11).
func Watch(ctx context.Context, dir string, onFound func(Info)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rendezvous: create dir: %w", err)
	}

	existing, err := Discover(dir)
	if err != nil {
		return err
	}
	for _, info := range existing {
		onFound(info)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rendezvous: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("rendezvous: watch %s: %w", dir, err)
	}

	// A just-created lock file may still be mid-write when the Create
	// event fires; give the writer a moment before reading it back.
	const settleDelay = 20 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || filepath.Ext(ev.Name) != ".lock" {
				continue
			}
			time.Sleep(settleDelay)
			if info, err := readLockFile(ev.Name); err == nil {
				onFound(info)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}
