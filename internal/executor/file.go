package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/safeenv"
)

const maxListEntries = 1000

type fileReadPayload struct {
	Path string `json:"path"`
}

func handleFileRead(_ context.Context, _ *Context, raw json.RawMessage) (json.RawMessage, *int, error) {
	var p fileReadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid file_read payload: %w", err)
	}
	if p.Path == "" {
		return nil, nil, errors.New("No file path specified")
	}
	resolved, err := safeenv.ValidatePath(p.Path)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", p.Path, err)
	}
	if info.Size() > MaxOutputBytes {
		return nil, nil, fmt.Errorf("file %s exceeds maximum readable size of %d bytes", p.Path, MaxOutputBytes)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	out, _ := json.Marshal(string(data))
	return out, nil, nil
}

type fileWritePayload struct {
	Path              string `json:"path"`
	Content           string `json:"content"`
	CreateDirectories bool   `json:"createDirectories"`
}

func handleFileWrite(_ context.Context, _ *Context, raw json.RawMessage) (json.RawMessage, *int, error) {
	var p fileWritePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid file_write payload: %w", err)
	}
	if p.Path == "" {
		return nil, nil, errors.New("No file path specified")
	}
	if p.Content == "" {
		return nil, nil, errors.New("No content specified")
	}
	if len(p.Content) > MaxOutputBytes {
		return nil, nil, fmt.Errorf("content exceeds maximum size of %d bytes", MaxOutputBytes)
	}

	resolved, err := safeenv.ValidatePath(p.Path)
	if err != nil {
		return nil, nil, err
	}

	if p.CreateDirectories {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create parent directories for %s: %w", p.Path, err)
		}
	}
	if err := os.WriteFile(resolved, []byte(p.Content), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", p.Path, err)
	}

	out, _ := json.Marshal(map[string]any{"written": len(p.Content)})
	return out, nil, nil
}

type fileListPayload struct {
	Path string `json:"path"`
}

type fileListEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

type fileListResult struct {
	Items     []fileListEntry `json:"items"`
	Truncated bool            `json:"truncated"`
	Total     int             `json:"total"`
}

func handleFileList(_ context.Context, _ *Context, raw json.RawMessage) (json.RawMessage, *int, error) {
	var p fileListPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid file_list payload: %w", err)
	}
	if p.Path == "" {
		p.Path = "."
	}
	resolved, err := safeenv.ValidatePath(p.Path)
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", p.Path, err)
	}

	result := fileListResult{Total: len(entries)}
	limit := len(entries)
	if limit > maxListEntries {
		limit = maxListEntries
		result.Truncated = true
	}

	for _, e := range entries[:limit] {
		item := fileListEntry{Name: e.Name()}
		info, err := e.Info()
		if err != nil {
			result.Items = append(result.Items, item)
			continue
		}
		if info.IsDir() {
			item.Type = "directory"
		} else {
			item.Type = "file"
		}
		item.Size = info.Size()
		item.Modified = info.ModTime().UTC().Format(time.RFC3339)
		result.Items = append(result.Items, item)
	}

	out, _ := json.Marshal(result)
	return out, nil, nil
}
