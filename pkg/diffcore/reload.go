package diffcore

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/editorbridge/editor-bridge/pkg/editor"
)

// reloadFallbackDelay is the heuristic bound from spec.md §5 ordering
// guarantee 3 and §9's open question: "the correct bound is
// unspecified... may replace it with a filesystem-change observer."
// This implementation does both: it watches for the write via fsnotify
// and falls back to the delay only if no event arrives in time.
const reloadFallbackDelay = 150 * time.Millisecond

// Reloader reloads any editor buffer still showing old_file_path after
// the assistant has written the accepted content to disk (spec.md §9,
// the closeTab "delayed reload" behavior).
type Reloader struct {
	client editor.Client
}

// NewReloader builds a Reloader bound to client.
func NewReloader(client editor.Client) *Reloader {
	return &Reloader{client: client}
}

// ScheduleReload starts watching path in the background and reloads
// any window showing it once the write lands (or the fallback delay
// elapses, whichever comes first). It never blocks the caller. cursor
// is the position to restore in that window once reloaded (spec.md §3,
// "original_cursor_pos: used to restore cursor after buffer reload on
// accept"); SetLines can reset a window's cursor, so the restore is not
// a no-op.
func (r *Reloader) ScheduleReload(path string, cursor CursorPos) {
	go r.waitAndReload(path, cursor)
}

func (r *Reloader) waitAndReload(path string, cursor CursorPos) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		time.Sleep(reloadFallbackDelay)
		r.reload(path, cursor)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		time.Sleep(reloadFallbackDelay)
		r.reload(path, cursor)
		return
	}

	timeout := time.NewTimer(reloadFallbackDelay)
	defer timeout.Stop()

	target := filepath.Clean(path)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				r.reload(path, cursor)
				return
			}
			if filepath.Clean(ev.Name) == target && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.reload(path, cursor)
				return
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				r.reload(path, cursor)
				return
			}
		case <-timeout.C:
			r.reload(path, cursor)
			return
		}
	}
}

func (r *Reloader) reload(path string, cursor CursorPos) {
	win, ok := r.client.FindWindowShowingFile(path)
	if !ok {
		return
	}
	buf, ok := r.client.WindowBuffer(win)
	if !ok {
		return
	}
	content, err := r.client.ReadFile(path)
	if err != nil {
		return
	}
	_ = r.client.SetLines(buf, splitLines(content))
	_ = r.client.SetCursor(win, cursor.Line, cursor.Col)
}

// diffBufferNamePattern reports whether name looks like one of the
// buffer names LayoutEngine assigns to a diff's own buffers, so
// closeAllDiffTabs can sweep up stray windows left behind by a tab the
// user closed by hand (spec.md §4.7).
func diffBufferNamePattern(name string) bool {
	return strings.HasSuffix(name, "(proposed)") ||
		strings.HasSuffix(name, "(inline diff)") ||
		name == "(NEW FILE - proposed)" ||
		name == "(NEW FILE - original)"
}
