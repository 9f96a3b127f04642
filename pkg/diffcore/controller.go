package diffcore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/editorbridge/editor-bridge/pkg/config"
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/logger"
	"github.com/editorbridge/editor-bridge/pkg/suspend"
)

// Controller is the entry point for a diff request: DiffController
// from spec.md §4.1. It orchestrates validation, layout rendering,
// registration, and suspension until the diff resolves.
type Controller struct {
	client    editor.Client
	registry  *Registry
	layout    *LayoutEngine
	ui        *UIBinder
	reloader  *Reloader
	opts      config.DiffOpts
	tempFiles *TempFileManager
	log       *logger.Logger
}

// NewController wires a Controller from its collaborators. opts is the
// static per-process diff configuration (spec.md §6); tempFiles may be
// nil if the caller never needs on-disk scratch content. log may be
// nil, in which case the controller and the registry/UIBinder it wires
// log nothing (SPEC_FULL.md §10: "Every DiffController/DiffRegistry/
// UIBinder transition logs at DEBUG; setup failures log at ERROR with
// the tab name and underlying cause").
func NewController(client editor.Client, registry *Registry, opts config.DiffOpts, tempFiles *TempFileManager, log *logger.Logger) *Controller {
	registry.SetLogger(log)
	c := &Controller{
		client:    client,
		registry:  registry,
		layout:    NewLayoutEngine(client, opts, log),
		ui:        NewUIBinder(client, registry, log),
		reloader:  NewReloader(client),
		opts:      opts,
		tempFiles: tempFiles,
		log:       log,
	}
	registry.SetEagerRejectHook(c.onResolvedRejected)
	return c
}

// logf logs at DEBUG, tagged with tabName, if a logger is installed.
func (c *Controller) logf(tabName, format string, args ...any) {
	if c.log != nil {
		c.log.WithTab(tabName).Debug(format, args...)
	}
}

// logError logs at ERROR, tagged with tabName and the underlying cause,
// if a logger is installed (SPEC_FULL.md §10, "setup failures log at
// ERROR with the tab name and underlying cause").
func (c *Controller) logError(tabName, message string, cause error) {
	if c.log != nil {
		c.log.WithTab(tabName).Error("%s: %v", message, cause)
	}
}

// OpenDiffBlocking implements spec.md §4.1. ctx must be suspendable
// (pkg/suspend.WithSuspendable); failing that is a programmer error
// reported as KindInternalError, never a panic.
func (c *Controller) OpenDiffBlocking(ctx context.Context, req Request) (Result, error) {
	if !suspend.IsSuspendable(ctx) {
		return Result{}, newError(KindInternalError, "must run suspendable", nil)
	}

	// Step 1: replacement.
	if c.registry.Contains(req.TabName) {
		c.logf(req.TabName, "replacing live diff before reopen")
		_ = c.registry.ResolveRejected(req.TabName)
		c.registry.Cleanup(req.TabName, c.teardown)
	}

	isNewFile := !c.client.FileExists(req.OldFilePath)

	// Step 2: precondition check.
	if !isNewFile {
		modified, err := c.client.IsModifiedInEditor(req.OldFilePath)
		if err != nil {
			c.logError(req.TabName, "check modified state", err)
			return Result{}, newError(KindInternalError, "check modified state", err)
		}
		if modified {
			c.logf(req.TabName, "open rejected: unsaved changes in %s", req.OldFilePath)
			return Result{}, newError(KindUnsavedChanges, req.OldFilePath, nil)
		}
	}

	if c.opts.Layout == config.LayoutInline && !c.hasLineDiffPrimitive() {
		return Result{}, newError(KindUnsupportedRuntime, "inline layout requires a line-diff primitive", nil)
	}

	oldContent := ""
	var oldModTime time.Time
	if !isNewFile {
		content, err := c.client.ReadFile(req.OldFilePath)
		if err != nil {
			c.logError(req.TabName, "read old file", err)
			return Result{}, newError(KindSetupFailed, "read old file", err)
		}
		oldContent = content
		if info, statErr := os.Stat(req.OldFilePath); statErr == nil {
			oldModTime = info.ModTime()
		}
	}

	// Steps 3-7: layout.
	state, err := c.layout.Render(req, isNewFile, oldContent)
	if err != nil {
		c.logError(req.TabName, "render layout", err)
		return Result{}, err
	}
	state.OldFileModTimeAtOpen = oldModTime
	state.Resumer = suspend.NewResumer[Result]()

	if !isNewFile && state.Layout != config.LayoutInline {
		c.attachScratchFile(state, oldContent)
	}

	// Step 8 (hooks) + step 9 (register). A hook-bind failure rolls the
	// freshly rendered UI back exactly like a layout failure would.
	if err := c.ui.Bind(state, c.extractContent); err != nil {
		c.logError(req.TabName, "install UI hooks", err)
		c.layout.rollback(state)
		return Result{}, newError(KindSetupFailed, "install UI hooks", err)
	}
	c.registry.Register(req.TabName, state)
	c.logf(req.TabName, "opened diff, layout=%s isNewFile=%v", state.Layout, isNewFile)

	if c.opts.KeepTerminalFocus {
		// Best-effort: focus restoration failing must not fail the open.
		_ = c.refocusAssistantTerminal(state)
	}

	// Step 10: suspend.
	result, err := state.Resumer.Await(ctx)
	if err != nil {
		c.logError(req.TabName, "await resumer", err)
		return Result{}, newError(KindInternalError, "await resumer", err)
	}
	return result, nil
}

// attachScratchFile writes the old content to a throwaway file on disk
// and records its location on both state and the proposed buffer (spec.md
// §9, "Temp-file management": some editor diff primitives need the old
// side backed by a real path rather than an in-memory buffer). Failure is
// best-effort: a diff must still open without a scratch file, since
// nothing downstream depends on one existing.
func (c *Controller) attachScratchFile(state *State, oldContent string) {
	if c.tempFiles == nil {
		return
	}
	path, dir, err := c.tempFiles.CreateScratchFile(scratchFileName(state), oldContent)
	if err != nil {
		c.logError(state.TabName, "create scratch file", err)
		return
	}
	state.TempDir = dir
	if err := c.client.SetBufferVar(state.ProposedBufferID, bufferTagScratchFilePath, path); err != nil {
		c.logError(state.TabName, "tag scratch file path", err)
	}
}

// scratchFileName derives a stable on-disk name for state's scratch copy
// of the old file content, preserving the original extension so editor
// filetype detection still works against it.
func scratchFileName(state *State) string {
	base := filepath.Base(state.OldFilePath)
	if base == "" || base == "." {
		base = "original"
	}
	return base
}

func (c *Controller) hasLineDiffPrimitive() bool {
	return true // go-difflib is always linked in; see InlineDiffer.
}

// refocusAssistantTerminal is a no-op placeholder hook point: the real
// editor implementation returns focus to wherever the assistant
// terminal lives. FakeClient has nothing to focus, so there is nothing
// for this layer to call beyond what EmbedAssistantTerminal already
// arranged during layout.Render.
func (c *Controller) refocusAssistantTerminal(_ *State) error {
	return nil
}

// extractContent pulls the final accepted content out of state,
// depending on its layout, and reports whether old_file_path's mtime
// drifted since validation (spec.md §9, Open Question 3: "a
// conservative implementation should either revalidate at accept time
// or document the race"; this implementation revalidates and reports
// the drift rather than blocking on it).
func (c *Controller) extractContent(state *State) (content string, drift bool) {
	if state.Layout == config.LayoutInline {
		content = ExtractAcceptedContent(state.InlineLines, state.InlineKinds, state.NewFileContents)
	} else {
		lines, err := c.client.GetLines(state.ProposedBufferID)
		if err != nil {
			content = state.NewFileContents
		} else {
			content = joinWithTrailingNewline(lines, state.NewFileContents)
		}
	}

	if !state.IsNewFile && !state.OldFileModTimeAtOpen.IsZero() {
		if info, err := os.Stat(state.OldFilePath); err == nil {
			drift = !info.ModTime().Equal(state.OldFileModTimeAtOpen)
		}
	}
	return content, drift
}

func joinWithTrailingNewline(lines []string, originalNewContents string) string {
	out := strings.Join(lines, "\n")
	if strings.HasSuffix(originalNewContents, "\n") {
		out += "\n"
	}
	return out
}

// teardown reverses everything the controller and layout engine
// created for state: hooks, buffers, windows, the new tab if one was
// opened, and any scratch directory on disk. Every step is best-effort,
// since a stale window or buffer id must not stop the rest of cleanup
// from running (spec.md §7).
func (c *Controller) teardown(state *State) {
	c.logf(state.TabName, "tearing down")
	c.ui.Unbind(state)

	if state.ProposedBufferID != "" {
		_ = c.client.DeleteBuffer(state.ProposedBufferID)
	}
	if state.OriginalBufferCreatedByUs && state.OriginalBufferID != "" {
		_ = c.client.DeleteBuffer(state.OriginalBufferID)
	}
	if !state.CreatedNewTab && state.DiffWindowID != "" {
		_ = c.client.CloseWindow(state.DiffWindowID)
	}
	if state.CreatedNewTab {
		_ = c.client.SetCurrentTab(state.OriginalTabID)
		_ = c.client.CloseTab(state.NewTabID)
		if state.HadAssistantTerminalInOriginalTab {
			_ = c.client.EmbedAssistantTerminal(state.OriginalTabID, state.AssistantTerminalWidth)
		}
	}

	if c.tempFiles != nil && state.TempDir != "" {
		c.tempFiles.Remove(state.TempDir)
	}
}

// onResolvedRejected implements the eager-cleanup half of spec.md §4.2's
// resolve_rejected / §4.5's state-machine diagram: a rejected new-file
// diff that did not open in its own new tab is torn down immediately
// when on_new_file_reject=keep_empty, rather than waiting for the
// closeTab RPC. The fabricated empty placeholder buffer is left in
// place; only the proposed side and its window go away.
func (c *Controller) onResolvedRejected(state *State) {
	if !state.IsNewFile || state.CreatedNewTab {
		return
	}
	switch c.opts.OnNewFileReject {
	case config.OnNewFileRejectKeepEmpty:
		c.logf(state.TabName, "eager cleanup, keeping empty placeholder")
		c.teardownPreservingPlaceholder(state)
		c.registry.Remove(state.TabName)
	case config.OnNewFileRejectCloseWindow:
		c.logf(state.TabName, "eager cleanup, closing window")
		c.registry.Cleanup(state.TabName, c.teardown)
	}
}

// teardownPreservingPlaceholder is teardown minus the step that deletes
// the fabricated new-file placeholder buffer, for the keep_empty reject
// policy (spec.md §4.2: "the empty placeholder buffer is kept as-is").
func (c *Controller) teardownPreservingPlaceholder(state *State) {
	c.ui.Unbind(state)
	if state.ProposedBufferID != "" {
		_ = c.client.DeleteBuffer(state.ProposedBufferID)
	}
	if !state.CreatedNewTab && state.DiffWindowID != "" {
		_ = c.client.CloseWindow(state.DiffWindowID)
	}
	if c.tempFiles != nil && state.TempDir != "" {
		c.tempFiles.Remove(state.TempDir)
	}
}

// CloseTab implements the closeTab RPC surface (spec.md §4.7). If the
// diff was saved, it schedules a delayed reload of old_file_path
// before tearing down; if rejected, it tears down directly; if still
// pending, it force-rejects first so the suspended caller doesn't leak.
// A tab_name already cleaned up (e.g. by the keep_empty eager-reject
// path) is a no-op success: closeTab is the assistant's routine
// follow-up after consuming a reply, not proof the diff is still live.
func (c *Controller) CloseTab(tabName string) error {
	state, ok := c.registry.Get(tabName)
	if !ok {
		return nil
	}

	switch state.Status {
	case StatusPending:
		_ = c.registry.ResolveRejected(tabName)
	case StatusSaved:
		c.reloader.ScheduleReload(state.OldFilePath, state.OriginalCursorPos)
	}

	c.logf(tabName, "closeTab")
	c.registry.Cleanup(tabName, c.teardown)
	return nil
}

// AcceptCurrentDiff implements the "accept current diff" editor command
// (spec.md §6, §4.5): it resolves whichever diff owns buf as saved,
// without the caller having to know its tab_name. buf is ordinarily the
// user's current buffer, resolved by the editor-side command binding.
func (c *Controller) AcceptCurrentDiff(buf editor.BufferID) error {
	tabName, ok := c.ui.TabNameFromCurrentBuffer(buf)
	if !ok {
		return newError(KindInternalError, "no diff bound to current buffer", nil)
	}
	c.logf(tabName, "acceptCurrentDiff")
	return c.registry.ResolveSaved(tabName, c.extractContent)
}

// RejectCurrentDiff implements the "reject current diff" editor command
// (spec.md §6, §4.5): the reject counterpart of AcceptCurrentDiff.
func (c *Controller) RejectCurrentDiff(buf editor.BufferID) error {
	tabName, ok := c.ui.TabNameFromCurrentBuffer(buf)
	if !ok {
		return newError(KindInternalError, "no diff bound to current buffer", nil)
	}
	c.logf(tabName, "rejectCurrentDiff")
	return c.registry.ResolveRejected(tabName)
}

// Shutdown implements spec.md §3's process-shutdown hook: it force-
// rejects and tears down every still-live diff, so no suspended RPC
// handler leaks across process exit (spec.md §5 ordering guarantee 4).
// The caller (cmd/bridge) defers this once, after construction.
func (c *Controller) Shutdown() {
	c.registry.CleanupAll(c.teardown)
}

// CloseAllDiffTabs implements the closeAllDiffTabs RPC surface
// (spec.md §4.7): force-reject and tear down every live diff, then
// sweep any stray editor window whose buffer still matches a diff
// buffer's naming pattern (left behind if the user closed a diff tab
// by hand instead of through closeTab). It returns the number of live
// diffs that were closed.
func (c *Controller) CloseAllDiffTabs() int {
	n := c.registry.Len()
	if c.log != nil {
		c.log.Debug("closeAllDiffTabs: closing %d live diff(s)", n)
	}
	c.registry.CleanupAll(c.teardown)

	for _, win := range c.client.AllWindows() {
		buf, ok := c.client.WindowBuffer(win)
		if !ok {
			continue
		}
		name, ok := c.client.BufferName(buf)
		if !ok || !diffBufferNamePattern(name) {
			continue
		}
		_ = c.client.CloseWindow(win)
	}
	return n
}
