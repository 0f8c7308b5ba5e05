package chatpipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

const (
	defaultRemoteModel   = "claude-sonnet-4-5-20250929"
	defaultRemoteBaseURL = "https://api.anthropic.com/v1"
	remoteAPIVersion     = "2023-06-01"
	remoteRequestTimeout = 120 * time.Second
	remoteMaxTokens      = 4096
)

type remoteMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type remoteRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Stream    bool            `json:"stream"`
	System    string          `json:"system,omitempty"`
	Messages  []remoteMessage `json:"messages"`
}

type remoteMessageStartEvent struct {
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

type remoteContentBlockStartEvent struct {
	ContentBlock struct {
		Type string `json:"type"`
	} `json:"content_block"`
}

type remoteContentBlockDeltaEvent struct {
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type remoteMessageDeltaEvent struct {
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type remoteUsage struct {
	TotalInputTokens  int `json:"totalInputTokens"`
	TotalOutputTokens int `json:"totalOutputTokens"`
	TotalTokens       int `json:"totalTokens"`
}

type remoteDone struct {
	Text  string      `json:"text"`
	Usage remoteUsage `json:"usage"`
}

// runRemoteAPI posts the chat message (with history) to the remote model
// endpoint and streams its SSE response as ordered chunks (spec.md §4.3).
// History roles other than "assistant" are mapped to "user".
func runRemoteAPI(ctx context.Context, cfg Config, payload Payload, sender ChunkSender) error {
	if cfg.RemoteAPIKey == "" {
		send(ctx, sender, command.ChunkError, "remote API key is not configured")
		return errors.New("chatpipeline: remote API key is not configured")
	}

	model := cfg.RemoteModel
	if model == "" {
		model = defaultRemoteModel
	}
	baseURL := cfg.RemoteBaseURL
	if baseURL == "" {
		baseURL = defaultRemoteBaseURL
	}

	messages := make([]remoteMessage, 0, len(payload.History)+1)
	for _, turn := range payload.History {
		role := "user"
		if turn.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, remoteMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, remoteMessage{Role: "user", Content: payload.Message})

	reqBody := remoteRequest{
		Model:     model,
		MaxTokens: remoteMaxTokens,
		Stream:    true,
		System:    cfg.SystemPrompt,
		Messages:  messages,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chatpipeline: marshal remote request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, remoteRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/messages", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("chatpipeline: build remote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", cfg.RemoteAPIKey)
	httpReq.Header.Set("anthropic-version", remoteAPIVersion)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		send(ctx, sender, command.ChunkError, err.Error())
		return fmt.Errorf("chatpipeline: remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := fmt.Sprintf("remote API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		send(ctx, sender, command.ChunkError, msg)
		return errors.New("chatpipeline: " + msg)
	}

	return consumeRemoteStream(ctx, resp.Body, sender)
}

// consumeRemoteStream parses an Anthropic-shaped SSE body, forwarding
// text deltas as chunks and emitting a terminal done chunk on stream end.
// bufio.Reader keeps an internal buffer so a "data: " line split across
// two network reads is still reassembled before being handed to the caller.
func consumeRemoteStream(ctx context.Context, body io.Reader, sender ChunkSender) error {
	reader := bufio.NewReaderSize(body, 64<<10)

	var text strings.Builder
	var inputTokens, outputTokens int
	index := 0

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}
			if handled := handleRemoteEvent(ctx, data, sender, &text, &inputTokens, &outputTokens, &index); handled {
				index++
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("chatpipeline: read remote stream: %w", err)
		}
	}

	done := remoteDone{
		Text: text.String(),
		Usage: remoteUsage{
			TotalInputTokens:  inputTokens,
			TotalOutputTokens: outputTokens,
			TotalTokens:       inputTokens + outputTokens,
		},
	}
	content, err := json.Marshal(done)
	if err != nil {
		return fmt.Errorf("chatpipeline: marshal remote done payload: %w", err)
	}
	sender.Send(ctx, command.ChatChunk{Index: index, Type: command.ChunkDone, Content: string(content)})
	return nil
}

// handleRemoteEvent parses one SSE data payload and emits a chunk when it
// contains user-visible content. Returns true if it emitted a chunk
// (so the caller can advance the shared index).
func handleRemoteEvent(ctx context.Context, data string, sender ChunkSender, text *strings.Builder, inputTokens, outputTokens *int, index *int) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return false // non-JSON data: lines are silently skipped
	}

	switch probe.Type {
	case "message_start":
		var ev remoteMessageStartEvent
		if json.Unmarshal([]byte(data), &ev) == nil {
			*inputTokens += ev.Message.Usage.InputTokens
		}
		return false

	case "content_block_start":
		var ev remoteContentBlockStartEvent
		if json.Unmarshal([]byte(data), &ev) == nil && ev.ContentBlock.Type == "tool_use" {
			content := "tool use is not supported in remote API chat mode"
			text.WriteString(content)
			sender.Send(ctx, command.ChatChunk{Index: *index, Type: command.ChunkDelta, Content: content})
			return true
		}
		return false

	case "content_block_delta":
		var ev remoteContentBlockDeltaEvent
		if json.Unmarshal([]byte(data), &ev) == nil && ev.Delta.Type == "text_delta" {
			text.WriteString(ev.Delta.Text)
			sender.Send(ctx, command.ChatChunk{Index: *index, Type: command.ChunkDelta, Content: ev.Delta.Text})
			return true
		}
		return false

	case "message_delta":
		var ev remoteMessageDeltaEvent
		if json.Unmarshal([]byte(data), &ev) == nil {
			*outputTokens += ev.Usage.OutputTokens
		}
		return false

	default:
		return false
	}
}
