// Package editor defines the contract the diff core uses to drive the
// host code editor: buffers, windows, tabs, and the event hooks that
// turn user actions (save, close) into diff resolutions.
//
// The real editor (a running Neovim/VSCode-style instance) is an
// external collaborator (spec.md §1) reached over its own RPC wire
// protocol; that wire protocol is out of scope here. Client is the
// narrow contract the teacher's own editor bridge (`cmd/win-ai`
// talking to an `ad.Client`) exposes to the rest of the program:
// buffer/window ids as opaque strings, line-oriented reads and writes,
// and an event-filter style callback loop for user actions. A real
// implementation adapts a concrete editor's native API to this
// interface; FakeClient (fake.go) is a complete in-memory
// implementation used by every test in this module.
package editor

import "errors"

// BufferID, WindowID and TabID are opaque editor-assigned identifiers.
type BufferID string

// WindowID identifies an editor window (a viewport onto a buffer).
type WindowID string

// TabID identifies an editor tab (a collection of windows).
type TabID string

// HookID identifies an installed event hook, for later detachment.
type HookID string

// LineKind labels a rendered line in an inline diff buffer.
type LineKind string

const (
	LineUnchanged LineKind = "unchanged"
	LineAdded     LineKind = "added"
	LineDeleted   LineKind = "deleted"
)

// ErrNoSuitableWindow is returned by FindMainWindow when no ordinary
// editor window exists and none could be created.
var ErrNoSuitableWindow = errors.New("no suitable window")

// ErrNotFound is returned by lookups against an id the editor doesn't
// recognize (already closed, or never created).
var ErrNotFound = errors.New("editor: not found")

// WriteHandler is invoked when the user saves a buffer we've marked as
// write-intercepting (scratch content with writes suppressed). It
// receives the final buffer content as the editor holds it.
type WriteHandler func(content string)

// CloseHandler is invoked when a buffer is closed, unloaded, or wiped
// out from under a live diff.
type CloseHandler func()

// Client is the full surface the diff core needs from a host editor.
type Client interface {
	// Filesystem-adjacent queries the editor can answer more cheaply or
	// more correctly than a raw os.Stat (e.g. "is this file open with
	// unsaved edits").
	FileExists(path string) bool
	IsModifiedInEditor(path string) (bool, error)
	ReadFile(path string) (string, error)

	// Buffers.
	CreateBuffer(name string, lines []string, scratch bool) (BufferID, error)
	DeleteBuffer(id BufferID) error
	SetLines(id BufferID, lines []string) error
	GetLines(id BufferID) ([]string, error)
	SetFiletype(id BufferID, filetype string) error
	SetBufferVar(id BufferID, key, value string) error
	GetBufferVar(id BufferID, key string) (string, bool)
	DecorateLine(id BufferID, line int, kind LineKind) error

	// Windows.
	CurrentWindow() (WindowID, error)
	FindWindowShowingFile(path string) (WindowID, bool)
	FindMainWindow() (WindowID, error)
	SplitWindow(id WindowID, vertical bool) (WindowID, error)
	CloseWindow(id WindowID) error
	SetWindowBuffer(win WindowID, buf BufferID) error
	WindowBuffer(win WindowID) (BufferID, bool)
	EqualizeWindows(a, b WindowID) error
	SetDiffMode(win WindowID, enabled bool) error
	SetCursor(win WindowID, line, col int) error
	CursorPosition(win WindowID) (line, col int, err error)

	// AllWindows lists every window currently open, across all tabs.
	// Used by closeAllDiffTabs to sweep up stray diff windows left
	// behind by a crashed or manually-closed tab.
	AllWindows() []WindowID
	// BufferName returns the display name a buffer was created with.
	BufferName(id BufferID) (string, bool)

	// Tabs.
	CurrentTab() (TabID, error)
	CreateTab() (TabID, error)
	SetCurrentTab(id TabID) error
	CloseTab(id TabID) error

	// Assistant terminal embedding (kept only to the depth the diff core
	// needs to restore UI state on cleanup; the terminal's own lifecycle
	// is an external collaborator per spec.md §1).
	AssistantTerminalVisible(tab TabID) bool
	AssistantTerminalWidth(tab TabID) int
	EmbedAssistantTerminal(tab TabID, width int) error

	// Event hooks.
	OnWrite(id BufferID, handler WriteHandler) HookID
	OnClose(id BufferID, handler CloseHandler) HookID
	Detach(hook HookID)
}
