package chatpipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

// Submitter is the subset of the control-plane client a ChunkSender needs.
type Submitter interface {
	SubmitChunk(ctx context.Context, commandID string, chunk command.ChatChunk) error
}

// chunkSender maintains a per-command monotonic counter and swallows
// submission failures (fire-and-forget, per spec.md §4.3) so that one lost
// chunk never aborts the stream.
type chunkSender struct {
	mu        sync.Mutex
	client    Submitter
	commandID string
	next      int
}

// NewChunkSender returns a ChunkSender for a single command. It must not be
// shared across commands: chunk indices start at 0 per commandId.
func NewChunkSender(client Submitter, commandID string) ChunkSender {
	return &chunkSender{client: client, commandID: commandID}
}

func (s *chunkSender) Send(ctx context.Context, chunk command.ChatChunk) {
	s.mu.Lock()
	chunk.CommandID = s.commandID
	chunk.Index = s.next
	s.next++
	s.mu.Unlock()

	if err := s.client.SubmitChunk(ctx, s.commandID, chunk); err != nil {
		slog.Warn("chatpipeline: chunk submission failed, dropping", "commandId", s.commandID, "index", chunk.Index, "err", err)
	}
}
