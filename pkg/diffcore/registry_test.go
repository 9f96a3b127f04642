package diffcore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/editorbridge/editor-bridge/pkg/suspend"
)

func newPendingState(tabName string) *State {
	return &State{
		TabName: tabName,
		Status:  StatusPending,
		Resumer: suspend.NewResumer[Result](),
	}
}

func TestRegistryResolveSavedTransitionsAndFiresResumer(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t1")
	r.Register("t1", state)

	err := r.ResolveSaved("t1", func(s *State) (string, bool) { return "final content", false })
	require.NoError(t, err)

	got, ok := r.Get("t1")
	require.True(t, ok)
	require.Equal(t, StatusSaved, got.Status)
	require.NotNil(t, got.Result)
	require.Equal(t, "FILE_SAVED", got.Result.Content[0].Text)
	require.Equal(t, "final content", got.Result.Content[1].Text)
}

func TestRegistryResolveRejectedTransitionsAndFiresResumer(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t2")
	r.Register("t2", state)

	require.NoError(t, r.ResolveRejected("t2"))

	got, ok := r.Get("t2")
	require.True(t, ok)
	require.Equal(t, StatusRejected, got.Status)
	require.Equal(t, "DIFF_REJECTED", got.Result.Content[0].Text)
	require.Equal(t, "t2", got.Result.Content[1].Text)
}

func TestRegistryResolveIsANoOpOnceResolved(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t3")
	r.Register("t3", state)

	require.NoError(t, r.ResolveSaved("t3", func(s *State) (string, bool) { return "first", false }))
	require.NoError(t, r.ResolveRejected("t3")) // must not override

	got, _ := r.Get("t3")
	require.Equal(t, StatusSaved, got.Status)
	require.Equal(t, "first", got.Result.Content[1].Text)
}

func TestRegistryCleanupRemovesEntry(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t4")
	r.Register("t4", state)

	torn := false
	r.Cleanup("t4", func(s *State) { torn = true })

	_, ok := r.Get("t4")
	require.False(t, ok)
	require.True(t, torn)
}

func TestRegistryCleanupIsIdempotent(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t5")
	r.Register("t5", state)

	calls := 0
	teardown := func(s *State) { calls++ }
	r.Cleanup("t5", teardown)
	r.Cleanup("t5", teardown) // no-op, entry already gone

	require.Equal(t, 1, calls)
}

func TestRegistryCleanupAllResolvesBeforeTeardown(t *testing.T) {
	r := NewRegistry()
	s1 := newPendingState("a")
	s2 := newPendingState("b")
	r.Register("a", s1)
	r.Register("b", s2)

	var order []string
	teardown := func(s *State) {
		require.NotEqual(t, StatusPending, s.Status, "must be resolved before teardown")
		order = append(order, s.TabName)
	}
	r.CleanupAll(teardown)

	require.Equal(t, StatusRejected, s1.Status)
	require.Equal(t, StatusRejected, s2.Status)
	require.Equal(t, 0, r.Len())
	require.Len(t, order, 2)
}

func TestRegistryCleanupAllIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("a", newPendingState("a"))

	r.CleanupAll(func(s *State) {})
	r.CleanupAll(func(s *State) {}) // nothing live, no-op

	require.Equal(t, 0, r.Len())
}

func TestRegistryRegisterPanicsOnDuplicateTabName(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", newPendingState("dup"))

	require.Panics(t, func() {
		r.Register("dup", newPendingState("dup"))
	})
}

func TestRegistryTabNameForBuffer(t *testing.T) {
	r := NewRegistry()
	state := newPendingState("t6")
	state.ProposedBufferID = "buf-1"
	r.Register("t6", state)

	tabName, ok := r.TabNameForBuffer("buf-1")
	require.True(t, ok)
	require.Equal(t, "t6", tabName)

	r.Cleanup("t6", func(*State) {})
	_, ok = r.TabNameForBuffer("buf-1")
	require.False(t, ok)
}
