package diffcore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/editorbridge/editor-bridge/pkg/editor"
)

func TestComputeInlineDiffBasicReplace(t *testing.T) {
	lines, kinds := ComputeInlineDiff("a\nb\nc\n", "a\nB\nc\n")

	require.Equal(t, []string{"a", "b", "B", "c"}, lines)
	require.Equal(t, []editor.LineKind{
		editor.LineUnchanged,
		editor.LineDeleted,
		editor.LineAdded,
		editor.LineUnchanged,
	}, kinds)
}

func TestComputeInlineDiffIdentical(t *testing.T) {
	_, kinds := ComputeInlineDiff("one\ntwo\n", "one\ntwo\n")
	for _, k := range kinds {
		require.Equal(t, editor.LineUnchanged, k)
	}
}

func TestComputeInlineDiffPureInsertion(t *testing.T) {
	lines, kinds := ComputeInlineDiff("", "x\ny\n")
	require.Equal(t, []string{"x", "y"}, lines)
	for _, k := range kinds {
		require.Equal(t, editor.LineAdded, k)
	}
}

func TestComputeInlineDiffPureDeletion(t *testing.T) {
	lines, kinds := ComputeInlineDiff("x\ny\n", "")
	require.Equal(t, []string{"x", "y"}, lines)
	for _, k := range kinds {
		require.Equal(t, editor.LineDeleted, k)
	}
}

func TestComputeInlineDiffLenMatches(t *testing.T) {
	cases := [][2]string{
		{"a\nb\nc\n", "a\nB\nc\nd\n"},
		{"", ""},
		{"only one line, no newline", "only one line, no newline\n"},
		{"x\ny\nz\n", "z\ny\nx\n"},
	}
	for _, c := range cases {
		lines, kinds := ComputeInlineDiff(c[0], c[1])
		require.Equal(t, len(lines), len(kinds))
	}
}

func TestExtractAcceptedContentRoundTripsNewText(t *testing.T) {
	cases := []struct {
		old, new string
	}{
		{"a\nb\nc\n", "a\nB\nc\n"},
		{"", "hello\n"},
		{"hello\n", ""},
		{"one\ntwo\nthree\n", "one\ntwo\nthree\n"},
		{"x\ny\n", "x\ny"}, // no trailing newline on new
		{"line without trailing newline", "line without trailing newline"},
	}
	for _, c := range cases {
		lines, kinds := ComputeInlineDiff(c.old, c.new)
		got := ExtractAcceptedContent(lines, kinds, c.new)
		require.Equal(t, c.new, got, "old=%q new=%q", c.old, c.new)
	}
}

func TestExtractAcceptedContentUnchangedAndDeletedReconstructOld(t *testing.T) {
	cases := []struct {
		old, new string
	}{
		{"a\nb\nc\n", "a\nB\nc\n"},
		{"hello\n", ""},
		{"one\ntwo\nthree\n", "one\ntwo\nthree\n"},
	}
	for _, c := range cases {
		lines, kinds := ComputeInlineDiff(c.old, c.new)
		var kept []string
		for i, k := range kinds {
			if k == editor.LineUnchanged || k == editor.LineDeleted {
				kept = append(kept, lines[i])
			}
		}
		got := strings.Join(kept, "\n")
		if strings.HasSuffix(c.old, "\n") && got != "" {
			got += "\n"
		} else if c.old == "" {
			got = ""
		}
		require.Equal(t, c.old, got, "old=%q new=%q", c.old, c.new)
	}
}

func TestSplitLinesStripsTrailingNewlineArtifact(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
	require.Nil(t, splitLines(""))
	require.Equal(t, []string{"a"}, splitLines("a"))
}
