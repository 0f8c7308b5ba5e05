package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/safeenv"
)

type executeCommandPayload struct {
	Command string `json:"command"`
	Timeout *int64 `json:"timeout"`
	Cwd     string `json:"cwd"`
}

const (
	minTimeoutMS = 1
	maxTimeoutMS = 600000
)

func handleExecuteCommand(ctx context.Context, _ *Context, raw json.RawMessage) (json.RawMessage, *int, error) {
	var p executeCommandPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid execute_command payload: %w", err)
	}
	if p.Command == "" {
		return nil, nil, errors.New("No command specified")
	}
	if err := safeenv.ValidateCommand(p.Command); err != nil {
		return nil, nil, err
	}

	timeoutMS := int64(30000)
	if p.Timeout != nil {
		if *p.Timeout < minTimeoutMS || *p.Timeout > maxTimeoutMS {
			return nil, nil, errors.New("Timeout must be between 1 and 600000ms")
		}
		timeoutMS = *p.Timeout
	}

	cwd := p.Cwd
	if cwd != "" {
		resolved, err := safeenv.ValidatePath(cwd)
		if err != nil {
			return nil, nil, err
		}
		cwd = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	shell, shellFlag := "/bin/sh", "-c"
	if runtime.GOOS == "windows" {
		shell, shellFlag = "cmd.exe", "/c"
	}

	cmd := exec.CommandContext(runCtx, shell, shellFlag, p.Command)
	cmd.Env = safeenv.BuildSafeEnv()
	if cwd != "" {
		cmd.Dir = cwd
	}

	var combined truncatingBuffer
	var stderr bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = io.MultiWriter(&combined, &stderr)

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGKILL)
		}
		return nil, nil, fmt.Errorf("Command timed out after %dms", timeoutMS)
	}

	stdout := combined.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			msg := stderr.String()
			if msg == "" {
				msg = fmt.Sprintf("Process exited with code %d", code)
			}
			out, _ := json.Marshal(stdout)
			return nil, &code, &exitError{output: out, message: msg}
		}
		if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("Command not found: %s", shell)
		}
		if os.IsPermission(err) {
			return nil, nil, fmt.Errorf("Permission denied: %s", shell)
		}
		return nil, nil, err
	}

	out, _ := json.Marshal(stdout)
	zero := 0
	return out, &zero, nil
}

// exitError carries a non-zero execute_command outcome whose Output (the
// captured stdout) is still meaningful alongside the error message.
// Dispatch type-switches on this to populate both fields of the result.
type exitError struct {
	output  json.RawMessage
	message string
}

func (e *exitError) Error() string { return e.message }

const maxCombined = MaxOutputBytes

// truncatingBuffer caps combined stdout/stderr capture and appends a
// truncation marker once the limit is exceeded, instead of growing
// unbounded.
type truncatingBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (t *truncatingBuffer) Write(p []byte) (int, error) {
	if t.truncated {
		return len(p), nil
	}
	remaining := maxCombined - t.buf.Len()
	if remaining <= 0 {
		t.truncated = true
		t.buf.WriteString("\n... [output truncated]")
		return len(p), nil
	}
	if len(p) > remaining {
		t.buf.Write(p[:remaining])
		t.truncated = true
		t.buf.WriteString("\n... [output truncated]")
		return len(p), nil
	}
	t.buf.Write(p)
	return len(p), nil
}

func (t *truncatingBuffer) String() string { return t.buf.String() }
