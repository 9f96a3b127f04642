package diffcore

import (
	"fmt"
	"sync"

	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/logger"
)

// Registry is the process-wide tab_name -> State map (spec.md §4.2).
// Its methods may be called from several goroutines at once (pkg/transport
// runs each command on its own goroutine); mu serializes access to the
// maps.
type Registry struct {
	mu      sync.Mutex
	diffs   map[string]*State
	buffers map[editor.BufferID]string // editor buffer id -> owning tab_name

	// eagerRejectHook runs after every successful ResolveRejected, outside
	// the registry lock. DiffController wires this to implement the
	// "resolve_rejected eagerly tears down new-file diffs configured with
	// on_new_file_reject=keep_empty" rule from spec.md §4.2/§4.5; the
	// registry itself stays policy-free.
	eagerRejectHook func(*State)

	// log is nil-safe: a Registry constructed without SetLogger logs
	// nothing, the way a *logger.Logger-typed field defaults to inert
	// across this module (see pkg/transport.Server.log).
	log *logger.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		diffs:   make(map[string]*State),
		buffers: make(map[editor.BufferID]string),
	}
}

// SetEagerRejectHook installs fn to run after every ResolveRejected call
// that actually transitioned a diff out of pending. DiffController calls
// this once at construction time.
func (r *Registry) SetEagerRejectHook(fn func(*State)) {
	r.eagerRejectHook = fn
}

// SetLogger installs log as the registry's transition logger (spec.md
// §3/§4.2: register/resolve/cleanup are the lifecycle transitions DEBUG
// logging is meant to cover). DiffController calls this once at
// construction time; a registry with no logger installed stays silent.
func (r *Registry) SetLogger(log *logger.Logger) {
	r.log = log
}

// Register inserts state under tab_name. It is a programmer error to
// call this while an entry already exists; DiffController must force-
// reject and cleanup any existing entry first (spec.md §4.1 step 1).
func (r *Registry) Register(tabName string, state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.diffs[tabName]; exists {
		panic(fmt.Sprintf("diffcore: Register called with live tab_name %q", tabName))
	}
	r.diffs[tabName] = state
	if state.ProposedBufferID != "" {
		r.buffers[state.ProposedBufferID] = tabName
	}
	if r.log != nil {
		r.log.WithTab(tabName).Debug("registered diff, layout=%s", state.Layout)
	}
}

// Get returns the live state for tab_name, if any.
func (r *Registry) Get(tabName string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.diffs[tabName]
	return s, ok
}

// TabNameForBuffer resolves a buffer's owning tab_name, backing the
// buffer-local back-reference invariant (spec.md §3, invariant 7): the
// "accept current diff" / "reject current diff" editor commands look
// the current buffer up here instead of threading an explicit argument.
func (r *Registry) TabNameForBuffer(id editor.BufferID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tabName, ok := r.buffers[id]
	return tabName, ok
}

// Contains reports whether tab_name currently has a live diff.
func (r *Registry) Contains(tabName string) bool {
	_, ok := r.Get(tabName)
	return ok
}

// ResolveSaved transitions tab_name's state to saved and fires its
// resumer (spec.md §4.2). extractContent is invoked with the current
// state under the registry lock so the caller can pull final content
// out of the proposed buffer or the inline arrays without racing a
// concurrent replacement.
func (r *Registry) ResolveSaved(tabName string, extractContent func(*State) (string, bool)) error {
	r.mu.Lock()
	state, ok := r.diffs[tabName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("diffcore: ResolveSaved: no such tab %q", tabName)
	}
	if state.Status != StatusPending {
		r.mu.Unlock()
		return nil
	}
	finalContent, drift := extractContent(state)
	result := SavedResult(finalContent, drift)
	state.Status = StatusSaved
	state.Result = &result
	r.mu.Unlock()

	if r.log != nil {
		r.log.WithTab(tabName).Debug("resolved saved, contentDriftDetected=%v", drift)
	}
	state.Resumer.Resume(result)
	return nil
}

// ResolveRejected transitions tab_name's state to rejected and fires
// its resumer (spec.md §4.2).
func (r *Registry) ResolveRejected(tabName string) error {
	r.mu.Lock()
	state, ok := r.diffs[tabName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("diffcore: ResolveRejected: no such tab %q", tabName)
	}
	if state.Status != StatusPending {
		r.mu.Unlock()
		return nil
	}
	result := RejectedResult(tabName)
	state.Status = StatusRejected
	state.Result = &result
	r.mu.Unlock()

	if r.log != nil {
		r.log.WithTab(tabName).Debug("resolved rejected")
	}
	state.Resumer.Resume(result)
	if r.eagerRejectHook != nil {
		r.eagerRejectHook(state)
	}
	return nil
}

// Remove deletes tab_name's registry entry without invoking any
// teardown, for callers that have already torn down state's UI
// themselves (spec.md §4.2, the keep_empty eager-cleanup path) and only
// need the bookkeeping cleared. Idempotent.
func (r *Registry) Remove(tabName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.diffs[tabName]
	if !ok {
		return
	}
	delete(r.diffs, tabName)
	if state.ProposedBufferID != "" {
		delete(r.buffers, state.ProposedBufferID)
	}
}

// Cleanup tears down tab_name's UI footprint via teardown and removes
// it from the registry. Idempotent: calling it twice, or calling it for
// a tab_name that is no longer present, is a no-op (spec.md §4.2).
func (r *Registry) Cleanup(tabName string, teardown func(*State)) {
	r.mu.Lock()
	state, ok := r.diffs[tabName]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.diffs, tabName)
	if state.ProposedBufferID != "" {
		delete(r.buffers, state.ProposedBufferID)
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.WithTab(tabName).Debug("cleanup")
	}
	if teardown != nil {
		teardown(state)
	}
}

// CleanupAll force-rejects every still-pending diff and tears all of
// them down, in the order spec.md §4.2 / §5 invariant 4 requires for
// process shutdown: resolve first, so no suspended caller leaks, then
// cleanup.
func (r *Registry) CleanupAll(teardown func(*State)) {
	names := r.liveTabNames()
	if r.log != nil && len(names) > 0 {
		r.log.Debug("cleanup_all: tearing down %d live diff(s)", len(names))
	}
	for _, tabName := range names {
		r.ResolveRejected(tabName) // no-op if already resolved
		r.Cleanup(tabName, teardown)
	}
}

func (r *Registry) liveTabNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.diffs))
	for name := range r.diffs {
		names = append(names, name)
	}
	return names
}

// Len reports the number of live diffs, used by closeAllDiffTabs to
// report "CLOSED_<N>_DIFF_TABS".
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diffs)
}
