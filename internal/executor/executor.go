// Package executor dispatches typed commands to shell/file/process/chat
// handlers under the safety constraints enforced by safeenv (spec.md §4.2).
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

// MaxOutputBytes bounds combined stdout+stderr capture for execute_command,
// and file size for file_read/file_write.
const MaxOutputBytes = 10 * 1024 * 1024

// Handler executes one command type and returns its result payload (the
// CommandResult's Status/ExitCode/DurationMS/CompletedAt are filled in by
// Dispatch, not by the handler).
type Handler func(ctx context.Context, ectx *Context, payload json.RawMessage) (json.RawMessage, *int, error)

// Context carries everything a handler needs beyond the raw payload.
type Context struct {
	CommandID   string
	AgentID     string
	ProjectCode string
	ProjectDir  string

	// OnSetup and OnConfigSync are supplied by the project runtime (§4.6);
	// the executor only checks presence and forwards.
	OnSetup      func(ctx context.Context) (json.RawMessage, error)
	OnConfigSync func(ctx context.Context) (json.RawMessage, error)

	// ChatHandler performs the chat command (§4.3); nil disables chat.
	ChatHandler func(ctx context.Context, ectx *Context, payload json.RawMessage) (json.RawMessage, error)
}

// Router dispatches by command.Type to a registered Handler.
type Router struct {
	handlers map[command.Type]Handler
}

// NewRouter builds a Router with the built-in handlers for every command
// type except chat, setup, and config_sync, which are bound from ectx at
// dispatch time since they depend on runtime-supplied callbacks.
func NewRouter() *Router {
	r := &Router{handlers: make(map[command.Type]Handler)}
	r.Register(command.TypeExecuteCommand, handleExecuteCommand)
	r.Register(command.TypeFileRead, handleFileRead)
	r.Register(command.TypeFileWrite, handleFileWrite)
	r.Register(command.TypeFileList, handleFileList)
	r.Register(command.TypeProcessList, handleProcessList)
	r.Register(command.TypeProcessKill, handleProcessKill)
	r.Register(command.TypeChat, handleChat)
	r.Register(command.TypeSetup, handleSetup)
	r.Register(command.TypeConfigSync, handleConfigSync)
	return r
}

// Register installs or overrides the handler for a command type.
func (r *Router) Register(typ command.Type, h Handler) {
	r.handlers[typ] = h
}

// Dispatch executes cmd against ectx. It never returns a Go error: any
// failure, including a panic-worthy programming mistake in a handler, is
// captured and reported as a failed CommandResult so that dispatch never
// propagates (per spec.md §4.2).
func (r *Router) Dispatch(ctx context.Context, cmd command.Command, ectx *Context) (result command.CommandResult) {
	start := nowFunc()
	defer func() {
		if rec := recover(); rec != nil {
			result = command.Failure(cmd.ID, command.StatusError, fmt.Sprintf("internal error: %v", rec), nil, nil, nowFunc().Sub(start), nowFunc())
		}
	}()

	handler, ok := r.handlers[cmd.Type]
	if !ok {
		return command.Failure(cmd.ID, command.StatusError, fmt.Sprintf("Unknown command type: %s", cmd.Type), nil, nil, nowFunc().Sub(start), nowFunc())
	}

	output, exitCode, err := handler(ctx, ectx, cmd.Payload)
	completedAt := nowFunc()
	duration := completedAt.Sub(start)

	if err != nil {
		status := command.StatusError
		if ctx.Err() == context.DeadlineExceeded {
			status = command.StatusTimeout
		}
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return command.Failure(cmd.ID, status, exitErr.message, exitErr.output, exitCode, duration, completedAt)
		}
		return command.Failure(cmd.ID, status, err.Error(), nil, exitCode, duration, completedAt)
	}
	return command.Success(cmd.ID, output, exitCode, duration, completedAt)
}

func handleSetup(ctx context.Context, ectx *Context, _ json.RawMessage) (json.RawMessage, *int, error) {
	if ectx == nil || ectx.OnSetup == nil {
		return nil, nil, fmt.Errorf("setup is not available for this runtime")
	}
	out, err := ectx.OnSetup(ctx)
	return out, nil, err
}

func handleConfigSync(ctx context.Context, ectx *Context, _ json.RawMessage) (json.RawMessage, *int, error) {
	if ectx == nil || ectx.OnConfigSync == nil {
		return nil, nil, fmt.Errorf("config_sync is not available for this runtime")
	}
	out, err := ectx.OnConfigSync(ctx)
	return out, nil, err
}

func handleChat(ctx context.Context, ectx *Context, payload json.RawMessage) (json.RawMessage, *int, error) {
	if ectx == nil || ectx.AgentID == "" {
		return nil, nil, fmt.Errorf("agentId is required for chat command")
	}
	if ectx.ChatHandler == nil {
		return nil, nil, fmt.Errorf("chat is not available for this runtime")
	}
	out, err := ectx.ChatHandler(ctx, ectx, payload)
	return out, nil, err
}
