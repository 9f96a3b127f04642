package diffcore

import (
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/logger"
)

const bufferTagDiffTabName = "diff_tab_name"
const bufferTagInlineDiff = "inline_diff"
const bufferTagScratchFilePath = "diff_scratch_path"

// UIBinder installs the editor event hooks that turn user actions
// (save, close) into diff resolutions (spec.md §4.5). Hooks never tear
// down UI themselves; they only transition status and fire the
// resumer. Cleanup is driven separately, by closeTab or an explicit
// user command or shutdown.
type UIBinder struct {
	client   editor.Client
	registry *Registry
	log      *logger.Logger
}

// NewUIBinder builds a UIBinder bound to client and registry. log may
// be nil, in which case Bind/Unbind log nothing.
func NewUIBinder(client editor.Client, registry *Registry, log *logger.Logger) *UIBinder {
	return &UIBinder{client: client, registry: registry, log: log}
}

// Bind tags state's proposed buffer and installs its write/close
// hooks, appending the resulting hook ids to state.UIHookIDs.
// extractContent is forwarded to Registry.ResolveSaved so the save
// path can pull final content out of either a split proposed buffer
// or inline arrays.
func (b *UIBinder) Bind(state *State, extractContent func(*State) (string, bool)) error {
	buf := state.ProposedBufferID

	if err := b.client.SetBufferVar(buf, bufferTagDiffTabName, state.TabName); err != nil {
		return err
	}
	if state.Layout == "inline" {
		if err := b.client.SetBufferVar(buf, bufferTagInlineDiff, "true"); err != nil {
			return err
		}
	}

	tabName := state.TabName
	writeHook := b.client.OnWrite(buf, func(_ string) {
		_ = b.registry.ResolveSaved(tabName, extractContent)
	})
	closeHook := b.client.OnClose(buf, func() {
		_ = b.registry.ResolveRejected(tabName)
	})

	state.UIHookIDs = append(state.UIHookIDs, writeHook, closeHook)
	if b.log != nil {
		b.log.WithTab(tabName).Debug("bound write/close hooks")
	}
	return nil
}

// Unbind detaches every hook state owns. Errors from Detach are not
// surfaced: a stale hook id must not block the rest of cleanup
// (spec.md §7, "errors inside UI hooks ... are swallowed").
func (b *UIBinder) Unbind(state *State) {
	for _, hook := range state.UIHookIDs {
		b.client.Detach(hook)
	}
	state.UIHookIDs = nil
	if b.log != nil {
		b.log.WithTab(state.TabName).Debug("unbound hooks")
	}
}

// TabNameFromCurrentBuffer backs the "accept current diff" / "reject
// current diff" editor commands (spec.md §4.5, §3 invariant 7): rather
// than taking an explicit tab_name, it looks buf up in the registry's
// buffer -> tab_name map, which Register fills alongside the
// diff_tab_name tag Bind sets on the same buffer.
func (b *UIBinder) TabNameFromCurrentBuffer(buf editor.BufferID) (string, bool) {
	return b.registry.TabNameForBuffer(buf)
}
