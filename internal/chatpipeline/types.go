// Package chatpipeline streams chat command output as ordered chunks, using
// either a local coding-CLI subprocess or a remote API backend (spec.md
// §4.3).
package chatpipeline

import (
	"context"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

// Mode selects which backend handles a chat command.
type Mode string

const (
	ModeLocalCLI Mode = "claude_code"
	ModeAPI      Mode = "api"
)

// ChunkSender delivers one chunk for a command, assigning it the next
// sequence index. Implementations are expected to fire-and-forget: a failed
// send is logged by the sender and must not abort the stream.
type ChunkSender interface {
	Send(ctx context.Context, chunk command.ChatChunk)
}

// Config carries everything a chat dispatch needs beyond the message body.
type Config struct {
	AgentID          string
	ActiveMode       Mode
	Locale           string
	AllowedTools     []string
	AddDirs          []string
	MCPConfigPath    string
	SystemPrompt     string
	AWSEnvOverlay    []string // "KEY=VALUE" pairs materialised from a project's AWS profile
	RemoteAPIKey     string
	RemoteModel      string
	RemoteBaseURL    string
	ClaudeExecutable string
}

// Payload is the chat command's parsed payload.
type Payload struct {
	Message   string        `json:"message"`
	SessionID string        `json:"sessionId,omitempty"`
	History   []HistoryTurn `json:"history,omitempty"`
}

// HistoryTurn is one prior turn supplied to the remote API backend.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
