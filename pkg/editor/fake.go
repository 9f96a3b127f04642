package editor

import (
	"fmt"
	"os"
	"sync"
)

// fakeBuffer is the in-memory state of one editor buffer.
type fakeBuffer struct {
	name    string
	lines   []string
	scratch bool
	vars    map[string]string
	decor   map[int]LineKind
	onWrite []hookEntry[WriteHandler]
	onClose []hookEntry[CloseHandler]
}

type hookEntry[H any] struct {
	id      HookID
	handler H
}

type fakeWindow struct {
	buf      BufferID
	diffMode bool
	line     int
	col      int
}

type fakeTab struct {
	windows         []WindowID
	terminalVisible bool
	terminalWidth   int
}

// FakeClient is a complete in-memory Client, used by every diffcore
// test instead of driving a real editor process.
type FakeClient struct {
	mu sync.Mutex

	buffers map[BufferID]*fakeBuffer
	windows map[WindowID]*fakeWindow
	tabs    map[TabID]*fakeTab

	currentWindow WindowID
	currentTab    TabID

	nextID int

	// ModifiedFiles marks paths the fake editor considers open with
	// unsaved edits, for exercising the UnsavedChanges precondition.
	ModifiedFiles map[string]bool

	// MainWindowUnavailable forces FindMainWindow to fail, for exercising
	// NoSuitableWindow.
	MainWindowUnavailable bool

	Closed bool
}

// NewFakeClient creates a FakeClient with one tab and one window, the
// way a real editor always has at least a main window.
func NewFakeClient() *FakeClient {
	c := &FakeClient{
		buffers:       make(map[BufferID]*fakeBuffer),
		windows:       make(map[WindowID]*fakeWindow),
		tabs:          make(map[TabID]*fakeTab),
		ModifiedFiles: make(map[string]bool),
	}
	tab := TabID("tab-0")
	win := WindowID("win-0")
	c.tabs[tab] = &fakeTab{windows: []WindowID{win}}
	c.windows[win] = &fakeWindow{}
	c.currentTab = tab
	c.currentWindow = win
	return c
}

func (c *FakeClient) genID(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

func (c *FakeClient) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (c *FakeClient) IsModifiedInEditor(path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ModifiedFiles[path], nil
}

func (c *FakeClient) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *FakeClient) CreateBuffer(name string, lines []string, scratch bool) (BufferID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := BufferID(c.genID("buf"))
	cp := make([]string, len(lines))
	copy(cp, lines)
	c.buffers[id] = &fakeBuffer{
		name:    name,
		lines:   cp,
		scratch: scratch,
		vars:    make(map[string]string),
		decor:   make(map[int]LineKind),
	}
	return id, nil
}

func (c *FakeClient) DeleteBuffer(id BufferID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buffers[id]; !ok {
		return ErrNotFound
	}
	delete(c.buffers, id)
	return nil
}

func (c *FakeClient) SetLines(id BufferID, lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return ErrNotFound
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	buf.lines = cp
	return nil
}

func (c *FakeClient) GetLines(id BufferID) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]string, len(buf.lines))
	copy(cp, buf.lines)
	return cp, nil
}

func (c *FakeClient) SetFiletype(id BufferID, filetype string) error {
	return c.SetBufferVar(id, "filetype", filetype)
}

func (c *FakeClient) SetBufferVar(id BufferID, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return ErrNotFound
	}
	buf.vars[key] = value
	return nil
}

func (c *FakeClient) GetBufferVar(id BufferID, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return "", false
	}
	v, ok := buf.vars[key]
	return v, ok
}

func (c *FakeClient) DecorateLine(id BufferID, line int, kind LineKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return ErrNotFound
	}
	buf.decor[line] = kind
	return nil
}

// Decorations exposes applied decorations, for test assertions.
func (c *FakeClient) Decorations(id BufferID) map[int]LineKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return nil
	}
	out := make(map[int]LineKind, len(buf.decor))
	for k, v := range buf.decor {
		out[k] = v
	}
	return out
}

func (c *FakeClient) CurrentWindow() (WindowID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentWindow, nil
}

func (c *FakeClient) FindWindowShowingFile(path string) (WindowID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, win := range c.windows {
		if buf, ok := c.buffers[win.buf]; ok && buf.name == path {
			return id, true
		}
	}
	return "", false
}

func (c *FakeClient) FindMainWindow() (WindowID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MainWindowUnavailable {
		return "", ErrNoSuitableWindow
	}
	return c.currentWindow, nil
}

func (c *FakeClient) SplitWindow(id WindowID, vertical bool) (WindowID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.windows[id]; !ok {
		return "", ErrNotFound
	}
	newID := WindowID(c.genID("win"))
	c.windows[newID] = &fakeWindow{}
	for tabID, tab := range c.tabs {
		for _, w := range tab.windows {
			if w == id {
				c.tabs[tabID].windows = append(c.tabs[tabID].windows, newID)
			}
		}
	}
	return newID, nil
}

func (c *FakeClient) CloseWindow(id WindowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.windows[id]; !ok {
		return ErrNotFound
	}
	delete(c.windows, id)
	for tabID, tab := range c.tabs {
		filtered := tab.windows[:0]
		for _, w := range tab.windows {
			if w != id {
				filtered = append(filtered, w)
			}
		}
		c.tabs[tabID].windows = filtered
	}
	return nil
}

func (c *FakeClient) SetWindowBuffer(win WindowID, buf BufferID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.buffers[buf]; !ok {
		return ErrNotFound
	}
	w.buf = buf
	return nil
}

func (c *FakeClient) WindowBuffer(win WindowID) (BufferID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	if !ok {
		return "", false
	}
	return w.buf, w.buf != ""
}

func (c *FakeClient) EqualizeWindows(a, b WindowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.windows[a]; !ok {
		return ErrNotFound
	}
	if _, ok := c.windows[b]; !ok {
		return ErrNotFound
	}
	return nil
}

func (c *FakeClient) SetDiffMode(win WindowID, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	if !ok {
		return ErrNotFound
	}
	w.diffMode = enabled
	return nil
}

// InDiffMode exposes diff-mode state, for test assertions.
func (c *FakeClient) InDiffMode(win WindowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	return ok && w.diffMode
}

func (c *FakeClient) SetCursor(win WindowID, line, col int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	if !ok {
		return ErrNotFound
	}
	w.line, w.col = line, col
	return nil
}

func (c *FakeClient) CursorPosition(win WindowID) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[win]
	if !ok {
		return 0, 0, ErrNotFound
	}
	return w.line, w.col, nil
}

func (c *FakeClient) AllWindows() []WindowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WindowID, 0, len(c.windows))
	for id := range c.windows {
		out = append(out, id)
	}
	return out
}

func (c *FakeClient) BufferName(id BufferID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[id]
	if !ok {
		return "", false
	}
	return buf.name, true
}

func (c *FakeClient) CurrentTab() (TabID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTab, nil
}

func (c *FakeClient) CreateTab() (TabID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := TabID(c.genID("tab"))
	winID := WindowID(c.genID("win"))
	c.windows[winID] = &fakeWindow{}
	c.tabs[id] = &fakeTab{windows: []WindowID{winID}}
	c.currentTab = id
	c.currentWindow = winID
	return id, nil
}

func (c *FakeClient) SetCurrentTab(id TabID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, ok := c.tabs[id]
	if !ok {
		return ErrNotFound
	}
	c.currentTab = id
	if len(tab.windows) > 0 {
		c.currentWindow = tab.windows[0]
	}
	return nil
}

func (c *FakeClient) CloseTab(id TabID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab, ok := c.tabs[id]
	if !ok {
		return ErrNotFound
	}
	for _, w := range tab.windows {
		delete(c.windows, w)
	}
	delete(c.tabs, id)
	return nil
}

func (c *FakeClient) AssistantTerminalVisible(tab TabID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tabs[tab]
	return ok && t.terminalVisible
}

func (c *FakeClient) AssistantTerminalWidth(tab TabID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tabs[tab]
	if !ok {
		return 0
	}
	return t.terminalWidth
}

func (c *FakeClient) EmbedAssistantTerminal(tab TabID, width int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tabs[tab]
	if !ok {
		return ErrNotFound
	}
	t.terminalVisible = true
	t.terminalWidth = width
	return nil
}

// SetAssistantTerminalVisible seeds terminal state for a tab, for tests
// that simulate "the assistant terminal was open in the original tab".
func (c *FakeClient) SetAssistantTerminalVisible(tab TabID, visible bool, width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tabs[tab]
	if !ok {
		return
	}
	t.terminalVisible = visible
	t.terminalWidth = width
}

func (c *FakeClient) OnWrite(id BufferID, handler WriteHandler) HookID {
	c.mu.Lock()
	defer c.mu.Unlock()
	hookID := HookID(c.genID("hook"))
	if buf, ok := c.buffers[id]; ok {
		buf.onWrite = append(buf.onWrite, hookEntry[WriteHandler]{id: hookID, handler: handler})
	}
	return hookID
}

func (c *FakeClient) OnClose(id BufferID, handler CloseHandler) HookID {
	c.mu.Lock()
	defer c.mu.Unlock()
	hookID := HookID(c.genID("hook"))
	if buf, ok := c.buffers[id]; ok {
		buf.onClose = append(buf.onClose, hookEntry[CloseHandler]{id: hookID, handler: handler})
	}
	return hookID
}

func (c *FakeClient) Detach(hook HookID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, buf := range c.buffers {
		buf.onWrite = removeHook(buf.onWrite, hook)
		buf.onClose = removeHook(buf.onClose, hook)
	}
}

func removeHook[H any](entries []hookEntry[H], id HookID) []hookEntry[H] {
	filtered := entries[:0]
	for _, e := range entries {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// SimulateSave fires a buffer's write hooks with its current content,
// exactly as a real editor would do when the user issues a save on a
// write-intercepted buffer.
func (c *FakeClient) SimulateSave(id BufferID) {
	c.mu.Lock()
	buf, ok := c.buffers[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	content := joinLines(buf.lines)
	handlers := make([]WriteHandler, len(buf.onWrite))
	for i, e := range buf.onWrite {
		handlers[i] = e.handler
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(content)
	}
}

// SimulateClose fires a buffer's close hooks, as a real editor would do
// when the user closes/unloads/wipes out the buffer.
func (c *FakeClient) SimulateClose(id BufferID) {
	c.mu.Lock()
	buf, ok := c.buffers[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	handlers := make([]CloseHandler, len(buf.onClose))
	for i, e := range buf.onClose {
		handlers[i] = e.handler
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
