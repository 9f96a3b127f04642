package diffcore

import (
	"fmt"
	"path/filepath"

	"github.com/editorbridge/editor-bridge/pkg/config"
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/logger"
)

// LayoutEngine materializes the visual diff: either a split layout
// (original buffer beside the proposed buffer, both in diff mode) or
// an inline layout (one read-only buffer interleaving deleted/added
// lines), per spec.md §4.1 steps 3-8 and §4.4.
type LayoutEngine struct {
	client editor.Client
	opts   config.DiffOpts
	log    *logger.Logger
}

// NewLayoutEngine builds a LayoutEngine bound to client and opts. opts
// is captured by value: diff options are static per process (spec.md
// §6), so each diff renders with the configuration in effect at open
// time even if the live config is later reloaded. log may be nil, in
// which case render failures log nothing.
func NewLayoutEngine(client editor.Client, opts config.DiffOpts, log *logger.Logger) *LayoutEngine {
	return &LayoutEngine{client: client, opts: opts, log: log}
}

// Render builds the editor-side half of State for req: tab placement,
// window selection, buffer construction, and either the split or the
// inline view, depending on opts.Layout. On error, everything Render
// itself created has already been torn down; the caller does not need
// to roll back Render's own work, only anything it did before calling
// Render (spec.md §4.1, "Failure handling").
func (e *LayoutEngine) Render(req Request, isNewFile bool, oldContent string) (*State, error) {
	state := &State{
		TabName:         req.TabName,
		Layout:          e.opts.Layout,
		Status:          StatusPending,
		OldFilePath:     req.OldFilePath,
		NewFilePath:     req.NewFilePath,
		NewFileContents: req.NewFileContents,
		IsNewFile:       isNewFile,
	}

	if err := e.placeTab(state); err != nil {
		e.logError(state.TabName, "place tab", err)
		e.rollback(state)
		return nil, err
	}

	var err error
	if e.opts.Layout == config.LayoutInline {
		err = e.renderInline(state, oldContent)
	} else {
		err = e.renderSplit(state, oldContent)
	}
	if err != nil {
		e.logError(state.TabName, "render", err)
		e.rollback(state)
		return nil, err
	}
	return state, nil
}

func (e *LayoutEngine) logError(tabName, message string, cause error) {
	if e.log != nil {
		e.log.WithTab(tabName).Error("%s: %v", message, cause)
	}
}

// placeTab implements spec.md §4.1 step 4: snapshot the assistant
// terminal's visibility, optionally create a new tab and re-embed the
// terminal there.
func (e *LayoutEngine) placeTab(state *State) error {
	originalTab, err := e.client.CurrentTab()
	if err != nil {
		return newError(KindSetupFailed, "resolve current tab", err)
	}
	state.OriginalTabID = originalTab
	state.HadAssistantTerminalInOriginalTab = e.client.AssistantTerminalVisible(originalTab)
	state.AssistantTerminalWidth = e.client.AssistantTerminalWidth(originalTab)

	if !e.opts.OpenInNewTab {
		return nil
	}

	newTab, err := e.client.CreateTab()
	if err != nil {
		return newError(KindSetupFailed, "create new tab", err)
	}
	state.CreatedNewTab = true
	state.NewTabID = newTab
	if err := e.client.SetCurrentTab(newTab); err != nil {
		return newError(KindSetupFailed, "switch to new tab", err)
	}

	if state.HadAssistantTerminalInOriginalTab && !e.opts.HideTerminalInNewTab {
		if err := e.client.EmbedAssistantTerminal(newTab, state.AssistantTerminalWidth); err != nil {
			return newError(KindSetupFailed, "re-embed assistant terminal", err)
		}
	}
	return nil
}

// selectOriginalWindow implements spec.md §4.1 step 5.
func (e *LayoutEngine) selectOriginalWindow(state *State) (editor.WindowID, error) {
	if state.CreatedNewTab {
		win, err := e.client.FindMainWindow()
		if err != nil {
			return "", newError(KindNoSuitableWindow, "no window in new tab", err)
		}
		return win, nil
	}

	if win, ok := e.client.FindWindowShowingFile(state.OldFilePath); ok {
		return win, nil
	}

	win, err := e.client.FindMainWindow()
	if err != nil {
		return "", newError(KindNoSuitableWindow, "no suitable original-side window", err)
	}
	return win, nil
}

// renderSplit implements spec.md §4.1 steps 6-7.
func (e *LayoutEngine) renderSplit(state *State, oldContent string) error {
	originalWindow, err := e.selectOriginalWindow(state)
	if err != nil {
		return err
	}
	state.OriginalWindowID = originalWindow
	if line, col, err := e.client.CursorPosition(originalWindow); err == nil {
		state.OriginalCursorPos = CursorPos{Line: line, Col: col}
	}

	originalBuf, createdByUs, err := e.prepareOriginalBuffer(originalWindow, state, oldContent)
	if err != nil {
		return newError(KindBufferCreationFailed, "prepare original buffer", err)
	}
	state.OriginalBufferID = originalBuf
	state.OriginalBufferCreatedByUs = createdByUs

	diffWindow, err := e.client.SplitWindow(originalWindow, e.splitVertical())
	if err != nil {
		return newError(KindBufferCreationFailed, "split window", err)
	}
	state.DiffWindowID = diffWindow

	proposedName := proposedBufferName(state)
	proposedBuf, err := e.client.CreateBuffer(proposedName, splitLines(state.NewFileContents), true)
	if err != nil {
		return newError(KindBufferCreationFailed, "create proposed buffer", err)
	}
	state.ProposedBufferID = proposedBuf

	if err := e.client.SetWindowBuffer(diffWindow, proposedBuf); err != nil {
		return newError(KindBufferCreationFailed, "attach proposed buffer to window", err)
	}
	if ft, ok := e.filetypeOf(state.OldFilePath); ok {
		_ = e.client.SetFiletype(proposedBuf, ft)
	}
	if err := e.client.SetDiffMode(originalWindow, true); err != nil {
		return newError(KindSetupFailed, "enable diff mode (original)", err)
	}
	if err := e.client.SetDiffMode(diffWindow, true); err != nil {
		return newError(KindSetupFailed, "enable diff mode (proposed)", err)
	}
	if err := e.client.EqualizeWindows(originalWindow, diffWindow); err != nil {
		return newError(KindSetupFailed, "equalize windows", err)
	}
	return nil
}

// prepareOriginalBuffer loads old_file_path into the original window,
// reusing the window's buffer if it is already showing that file. For a
// new-file diff it always creates a fresh empty placeholder buffer named
// "(NEW FILE - original)"; an empty buffer already in the window is not
// reused.
func (e *LayoutEngine) prepareOriginalBuffer(win editor.WindowID, state *State, oldContent string) (editor.BufferID, bool, error) {
	if buf, ok := e.client.WindowBuffer(win); ok && !state.IsNewFile {
		if name, ok := e.client.BufferName(buf); ok && name == state.OldFilePath {
			return buf, false, nil
		}
	}

	name := state.OldFilePath
	if state.IsNewFile {
		name = "(NEW FILE - original)"
	}
	buf, err := e.client.CreateBuffer(name, splitLines(oldContent), state.IsNewFile)
	if err != nil {
		return "", false, err
	}
	if err := e.client.SetWindowBuffer(win, buf); err != nil {
		return "", false, err
	}
	return buf, state.IsNewFile, nil
}

// renderInline implements spec.md §4.4.
func (e *LayoutEngine) renderInline(state *State, oldContent string) error {
	lines, kinds := ComputeInlineDiff(oldContent, state.NewFileContents)
	state.InlineLines = lines
	state.InlineKinds = kinds

	win, err := e.selectOriginalWindow(state)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s (inline diff)", state.TabName)
	buf, err := e.client.CreateBuffer(name, lines, true)
	if err != nil {
		return newError(KindBufferCreationFailed, "create inline diff buffer", err)
	}
	state.ProposedBufferID = buf

	if err := e.client.SetWindowBuffer(win, buf); err != nil {
		return newError(KindBufferCreationFailed, "attach inline buffer to window", err)
	}
	state.DiffWindowID = win

	if ft, ok := e.filetypeOf(state.OldFilePath); ok {
		_ = e.client.SetFiletype(buf, ft)
	}
	for i, kind := range kinds {
		if kind == editor.LineUnchanged {
			continue
		}
		_ = e.client.DecorateLine(buf, i, kind)
	}
	if line := firstNonUnchanged(kinds); line >= 0 {
		_ = e.client.SetCursor(win, line, 0)
	}
	return nil
}

// rollback undoes whatever Render managed to create before failing,
// per spec.md §4.1's "Failure handling" clause. It never returns an
// error: partial-teardown failures are swallowed here exactly as
// spec.md §7 prescribes for UI hook cleanup, because a half-failed
// rollback must not mask the original error.
func (e *LayoutEngine) rollback(state *State) {
	if state.ProposedBufferID != "" {
		_ = e.client.DeleteBuffer(state.ProposedBufferID)
	}
	if state.OriginalBufferCreatedByUs && state.OriginalBufferID != "" {
		_ = e.client.DeleteBuffer(state.OriginalBufferID)
	}
	if state.DiffWindowID != "" {
		_ = e.client.CloseWindow(state.DiffWindowID)
	}
	if state.CreatedNewTab {
		_ = e.client.CloseTab(state.NewTabID)
	}
}

func (e *LayoutEngine) splitVertical() bool {
	return e.opts.Layout == config.LayoutVertical
}

func (e *LayoutEngine) filetypeOf(path string) (string, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	return ext[1:], true
}

func proposedBufferName(state *State) string {
	if state.IsNewFile {
		return "(NEW FILE - proposed)"
	}
	return fmt.Sprintf("%s (proposed)", state.TabName)
}

func firstNonUnchanged(kinds []editor.LineKind) int {
	for i, k := range kinds {
		if k != editor.LineUnchanged {
			return i
		}
	}
	return -1
}
