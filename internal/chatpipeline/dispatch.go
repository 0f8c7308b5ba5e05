package chatpipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Run validates and decodes a chat command payload, then routes it to the
// backend selected by cfg.ActiveMode. Chunks are delivered through sender
// as they become available; Run's error return only reflects whether the
// stream reached a clean terminal chunk.
func Run(ctx context.Context, cfg Config, rawPayload json.RawMessage, sender ChunkSender) error {
	var payload Payload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return fmt.Errorf("chatpipeline: decode payload: %w", err)
	}
	if payload.Message == "" {
		return errors.New("chatpipeline: message is required")
	}

	switch cfg.ActiveMode {
	case ModeAPI:
		return runRemoteAPI(ctx, cfg, payload, sender)
	case ModeLocalCLI, "":
		return runLocalCLI(ctx, cfg, payload.Message, sender)
	default:
		return fmt.Errorf("chatpipeline: unknown chat mode %q", cfg.ActiveMode)
	}
}
