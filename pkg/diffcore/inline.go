package diffcore

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/editorbridge/editor-bridge/pkg/editor"
)

// ComputeInlineDiff is the pure function from spec.md §4.3: given old and
// new file text, it produces parallel arrays of rendered lines and their
// kinds, suitable for an inline unified-diff buffer.
//
// It is built directly on difflib.SequenceMatcher.GetOpCodes(): each
// OpCode's (Tag, I1, I2, J1, J2) carries the hunk spec.md describes as
// (start_a, count_a, start_b, count_b), as 0-indexed end-exclusive
// ranges (count_a = I2-I1, count_b = J2-J1), with the 'e'/'r'/
// 'd'/'i' tags covering the unchanged/replace/delete/insert cases
// directly, so there is no separate bookkeeping for the
// pure-insertion-hunk edge case the spec calls out; GetOpCodes already
// walks matching blocks end to end including leading/trailing runs.
func ComputeInlineDiff(oldText, newText string) (lines []string, kinds []editor.LineKind) {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	matcher := difflib.NewMatcher(oldLines, newLines)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, l := range oldLines[op.I1:op.I2] {
				lines = append(lines, l)
				kinds = append(kinds, editor.LineUnchanged)
			}
		case 'r':
			for _, l := range oldLines[op.I1:op.I2] {
				lines = append(lines, l)
				kinds = append(kinds, editor.LineDeleted)
			}
			for _, l := range newLines[op.J1:op.J2] {
				lines = append(lines, l)
				kinds = append(kinds, editor.LineAdded)
			}
		case 'd':
			for _, l := range oldLines[op.I1:op.I2] {
				lines = append(lines, l)
				kinds = append(kinds, editor.LineDeleted)
			}
		case 'i':
			for _, l := range newLines[op.J1:op.J2] {
				lines = append(lines, l)
				kinds = append(kinds, editor.LineAdded)
			}
		}
	}
	return lines, kinds
}

// ExtractAcceptedContent is the companion function from spec.md §4.3:
// it concatenates every line whose kind is not "deleted", joined by "\n",
// re-appending a trailing newline iff originalNewContents ended with one.
func ExtractAcceptedContent(lines []string, kinds []editor.LineKind, originalNewContents string) string {
	kept := make([]string, 0, len(lines))
	for i, kind := range kinds {
		if kind != editor.LineDeleted {
			kept = append(kept, lines[i])
		}
	}
	out := strings.Join(kept, "\n")
	if strings.HasSuffix(originalNewContents, "\n") {
		out += "\n"
	}
	return out
}

// splitLines splits text on "\n" and strips the trailing empty element
// that arises from a final newline, so "a\nb\n" yields two lines, not
// three (spec.md §4.3 edge case). Empty text yields a nil/empty slice.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
