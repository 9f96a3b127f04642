package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/editorbridge/editor-bridge/pkg/diffcore"
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/logger"
	"github.com/editorbridge/editor-bridge/pkg/suspend"
)

// errorCode maps a diffcore error kind to a stable integer, for the
// `{code, message, data}` error envelope (spec.md §6).
func errorCode(kind diffcore.ErrorKind) int {
	switch kind {
	case diffcore.KindUnsavedChanges:
		return 1
	case diffcore.KindNoSuitableWindow:
		return 2
	case diffcore.KindBufferCreationFailed:
		return 3
	case diffcore.KindUnsupportedRuntime:
		return 4
	case diffcore.KindInternalError:
		return 5
	case diffcore.KindSetupFailed:
		return 6
	default:
		return 0
	}
}

// Server reads one JSON command per line from stdin and writes one
// JSON response per line to stdout, the way the teacher's pkg/rpc
// server does, generalized to the three diff-core tools of spec.md
// §6. Unlike the teacher's server, each command runs in its own
// goroutine: openDiff must be able to block awaiting its resumer
// without stalling closeTab/closeAllDiffTabs arriving on the same
// connection (spec.md §9, "coroutine-style blocking RPC").
type Server struct {
	controller *diffcore.Controller
	log        *logger.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewServer builds a Server bound to controller. log may be nil.
func NewServer(controller *diffcore.Controller, log *logger.Logger) *Server {
	return &Server{controller: controller, log: log}
}

// Run reads commands from in and writes responses to out until in is
// exhausted. It blocks until every in-flight command has completed. ctx
// is passed to every command handler, so cancelling it makes a blocked
// openDiff return; it does not stop the read loop, which ends only when
// in is exhausted.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			s.writeResponse(writer, Response{
				Success: false,
				Error:   &ErrorEnvelope{Code: errorCode(diffcore.KindInternalError), Message: fmt.Sprintf("invalid command: %v", err)},
			})
			continue
		}

		s.wg.Add(1)
		go func(cmd Command) {
			defer s.wg.Done()
			resp := s.handleCommand(ctx, cmd)
			s.writeResponse(writer, resp)
		}(cmd)
	}

	s.wg.Wait()
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (s *Server) writeResponse(writer *bufio.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		if s.log != nil {
			s.log.Error("transport: marshal response: %v", err)
		}
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

// handleCommand dispatches a single command and builds its response.
// It is unexported; tests in this package call it directly, the way the
// teacher's handleCommand is tested, so they can drive the dispatcher
// without a live io.Reader/Writer pair.
func (s *Server) handleCommand(ctx context.Context, cmd Command) Response {
	switch cmd.Type {
	case CommandOpenDiff:
		return s.handleOpenDiff(ctx, cmd)
	case CommandCloseTab:
		return s.handleCloseTab(cmd)
	case CommandCloseAllDiffTabs:
		return s.handleCloseAllDiffTabs(cmd)
	case CommandAcceptCurrentDiff:
		return s.handleAcceptCurrentDiff(cmd)
	case CommandRejectCurrentDiff:
		return s.handleRejectCurrentDiff(cmd)
	default:
		return Response{
			ID:      cmd.ID,
			Type:    cmd.Type,
			Success: false,
			Error:   &ErrorEnvelope{Code: errorCode(diffcore.KindInternalError), Message: fmt.Sprintf("unknown command %q", cmd.Type)},
		}
	}
}

func (s *Server) handleOpenDiff(ctx context.Context, cmd Command) Response {
	var params openDiffParams
	if err := json.Unmarshal(cmd.Data, &params); err != nil {
		return errResponse(cmd, errorCode(diffcore.KindInternalError), fmt.Sprintf("invalid openDiff params: %v", err))
	}

	req := diffcore.Request{
		OldFilePath:     params.OldFilePath,
		NewFilePath:     params.NewFilePath,
		NewFileContents: params.NewFileContents,
		TabName:         params.TabName,
	}

	result, err := s.controller.OpenDiffBlocking(suspend.WithSuspendable(ctx), req)
	if err != nil {
		if de, ok := err.(*diffcore.Error); ok {
			return errResponse(cmd, errorCode(de.Kind), de.Error())
		}
		return errResponse(cmd, errorCode(diffcore.KindInternalError), err.Error())
	}

	return Response{
		ID:      cmd.ID,
		Type:    cmd.Type,
		Success: true,
		Data:    map[string]any{"content": result.Content, "contentDriftDetected": result.ContentDriftDetected},
	}
}

func (s *Server) handleCloseTab(cmd Command) Response {
	var params closeTabParams
	if err := json.Unmarshal(cmd.Data, &params); err != nil {
		return errResponse(cmd, errorCode(diffcore.KindInternalError), fmt.Sprintf("invalid closeTab params: %v", err))
	}

	if err := s.controller.CloseTab(params.TabName); err != nil {
		if de, ok := err.(*diffcore.Error); ok {
			return errResponse(cmd, errorCode(de.Kind), de.Error())
		}
		return errResponse(cmd, errorCode(diffcore.KindInternalError), err.Error())
	}

	return Response{ID: cmd.ID, Type: cmd.Type, Success: true, Data: map[string]any{"success": true}}
}

func (s *Server) handleCloseAllDiffTabs(cmd Command) Response {
	n := s.controller.CloseAllDiffTabs()
	return Response{
		ID:      cmd.ID,
		Type:    cmd.Type,
		Success: true,
		Data: closeAllDiffTabsResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("CLOSED_%d_DIFF_TABS", n)}},
		},
	}
}

func (s *Server) handleAcceptCurrentDiff(cmd Command) Response {
	var params currentDiffParams
	if err := json.Unmarshal(cmd.Data, &params); err != nil {
		return errResponse(cmd, errorCode(diffcore.KindInternalError), fmt.Sprintf("invalid acceptCurrentDiff params: %v", err))
	}

	if err := s.controller.AcceptCurrentDiff(editor.BufferID(params.BufferID)); err != nil {
		if de, ok := err.(*diffcore.Error); ok {
			return errResponse(cmd, errorCode(de.Kind), de.Error())
		}
		return errResponse(cmd, errorCode(diffcore.KindInternalError), err.Error())
	}

	return Response{ID: cmd.ID, Type: cmd.Type, Success: true, Data: map[string]any{"success": true}}
}

func (s *Server) handleRejectCurrentDiff(cmd Command) Response {
	var params currentDiffParams
	if err := json.Unmarshal(cmd.Data, &params); err != nil {
		return errResponse(cmd, errorCode(diffcore.KindInternalError), fmt.Sprintf("invalid rejectCurrentDiff params: %v", err))
	}

	if err := s.controller.RejectCurrentDiff(editor.BufferID(params.BufferID)); err != nil {
		if de, ok := err.(*diffcore.Error); ok {
			return errResponse(cmd, errorCode(de.Kind), de.Error())
		}
		return errResponse(cmd, errorCode(diffcore.KindInternalError), err.Error())
	}

	return Response{ID: cmd.ID, Type: cmd.Type, Success: true, Data: map[string]any{"success": true}}
}

func errResponse(cmd Command, code int, message string) Response {
	return Response{
		ID:      cmd.ID,
		Type:    cmd.Type,
		Success: false,
		Error:   &ErrorEnvelope{Code: code, Message: message},
	}
}
