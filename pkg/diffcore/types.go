// Package diffcore implements the interactive diff subsystem: the
// component that receives a "show me this proposed file content"
// request, renders it in the editor, blocks until the user accepts or
// rejects it, and returns the protocol-shaped result (spec.md §1-§9).
package diffcore

import (
	"fmt"
	"time"

	"github.com/editorbridge/editor-bridge/pkg/config"
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/suspend"
)

// Status is a DiffState's lifecycle stage (spec.md §3, invariant 2: it
// transitions only pending→saved or pending→rejected, never reverses,
// never skips).
type Status string

const (
	StatusPending  Status = "pending"
	StatusSaved    Status = "saved"
	StatusRejected Status = "rejected"
)

// Request is the immutable input to OpenDiffBlocking (spec.md §3).
type Request struct {
	OldFilePath     string
	NewFilePath     string
	NewFileContents string
	TabName         string
}

// ContentBlock mirrors the `{type, text}` shape of the protocol reply
// (spec.md §6).
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	markerFileSaved    = "FILE_SAVED"
	markerDiffRejected = "DIFF_REJECTED"
)

// Result is the protocol-shaped payload returned once a diff resolves.
type Result struct {
	Content []ContentBlock `json:"content"`

	// ContentDriftDetected records whether old_file_path's mtime changed
	// between validation and resolution (spec.md §9, Open Question 3).
	ContentDriftDetected bool `json:"contentDriftDetected,omitempty"`
}

// SavedResult builds the FILE_SAVED reply shape.
func SavedResult(finalContent string, drift bool) Result {
	return Result{
		Content: []ContentBlock{
			{Type: "text", Text: markerFileSaved},
			{Type: "text", Text: finalContent},
		},
		ContentDriftDetected: drift,
	}
}

// RejectedResult builds the DIFF_REJECTED reply shape.
func RejectedResult(tabName string) Result {
	return Result{
		Content: []ContentBlock{
			{Type: "text", Text: markerDiffRejected},
			{Type: "text", Text: tabName},
		},
	}
}

// ErrorKind names the error kinds from spec.md §7. These are reported
// to the RPC caller as error envelopes, never as panics.
type ErrorKind string

const (
	KindUnsavedChanges       ErrorKind = "UnsavedChanges"
	KindNoSuitableWindow     ErrorKind = "NoSuitableWindow"
	KindBufferCreationFailed ErrorKind = "BufferCreationFailed"
	KindUnsupportedRuntime   ErrorKind = "UnsupportedRuntime"
	KindInternalError        ErrorKind = "InternalError"
	KindSetupFailed          ErrorKind = "SetupFailed"
)

// Error is a diff-core error carrying one of the named kinds plus an
// optional underlying cause (spec.md §7).
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// CursorPos is a (line, col) pair, used to restore the cursor after a
// buffer reload on accept.
type CursorPos struct {
	Line int
	Col  int
}

// State is the per-live-diff record owned exclusively by the Registry
// (spec.md §3).
type State struct {
	TabName string
	Layout  config.Layout
	Status  Status

	OldFilePath     string
	NewFilePath     string
	NewFileContents string
	IsNewFile       bool

	ProposedBufferID editor.BufferID
	DiffWindowID     editor.WindowID

	OriginalWindowID          editor.WindowID
	OriginalBufferID          editor.BufferID
	OriginalBufferCreatedByUs bool

	CreatedNewTab bool
	NewTabID      editor.TabID
	OriginalTabID editor.TabID

	HadAssistantTerminalInOriginalTab bool
	AssistantTerminalWidth            int

	UIHookIDs []editor.HookID

	OriginalCursorPos CursorPos

	// OldFileModTimeAtOpen records old_file_path's mtime at validation
	// time, for the content-drift detection described in spec.md §9 OQ3.
	OldFileModTimeAtOpen time.Time

	Resumer *suspend.Resumer[Result]
	Result  *Result

	// Inline layout only (spec.md §3, invariant 6).
	InlineLines []string
	InlineKinds []editor.LineKind

	// TempDir is the scratch directory created for this diff, if any
	// (spec.md §9, "Temp-file management"). Empty if none was created.
	TempDir string
}
