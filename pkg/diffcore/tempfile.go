package diffcore

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempFileManager creates and tears down the scratch files an
// optional split-layout proposed-content file needs on disk (spec.md
// §9, "Temp-file management"). Each call gets its own per-session
// directory so concurrent diffs never collide on a filename, and the
// whole directory is removed as a unit on cleanup, a scope-guard tied
// to the owning DiffState's lifetime, not to the process.
type TempFileManager struct {
	baseDir string
}

// NewTempFileManager builds a manager rooted at baseDir (created lazily
// on first use).
func NewTempFileManager(baseDir string) *TempFileManager {
	return &TempFileManager{baseDir: baseDir}
}

// CreateScratchFile writes content to a fresh per-session directory
// under baseDir and returns the file's path plus the directory that
// owns it. The caller records dir on the DiffState (State.TempDir) so
// Remove can be invoked from cleanup.
func (m *TempFileManager) CreateScratchFile(name, content string) (path, dir string, err error) {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return "", "", err
	}
	dir = filepath.Join(m.baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	return path, dir, nil
}

// Remove deletes dir and everything under it. It is idempotent and
// swallows a missing directory, matching the "cleanup is idempotent"
// requirement (spec.md §4.2) for state whose TempDir is empty or
// already removed.
func (m *TempFileManager) Remove(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}
