package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/safeenv"
)

const processListTimeout = 10 * time.Second

func handleProcessList(ctx context.Context, _ *Context, _ json.RawMessage) (json.RawMessage, *int, error) {
	runCtx, cancel := context.WithTimeout(ctx, processListTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(runCtx, "tasklist", "/fo", "csv", "/nh")
	} else {
		cmd = exec.CommandContext(runCtx, "ps", "aux")
	}
	cmd.Env = safeenv.BuildSafeEnv()

	output, err := cmd.Output()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, nil, errors.New("Command timed out after 10000ms")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list processes: %w", err)
	}

	out, _ := json.Marshal(string(output))
	return out, nil, nil
}

var allowedKillSignals = map[string]syscall.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGINT":  syscall.SIGINT,
	"SIGHUP":  syscall.SIGHUP,
}

var disallowedKillSignals = map[string]bool{
	"SIGKILL": true,
	"SIGSTOP": true,
}

// processKillPayload uses json.Number for PID so that fractional or
// non-integer values (1.5, "abc") can be detected and rejected rather than
// silently truncated by json.Unmarshal into an int.
type processKillPayload struct {
	PID    json.Number `json:"pid"`
	Signal string      `json:"signal"`
}

func handleProcessKill(_ context.Context, _ *Context, raw json.RawMessage) (json.RawMessage, *int, error) {
	var p processKillPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, nil, errors.New("Invalid PID: must be a positive integer")
	}

	pid, err := parsePositivePID(p.PID)
	if err != nil {
		return nil, nil, err
	}

	sig := syscall.SIGTERM
	if p.Signal != "" {
		if disallowedKillSignals[p.Signal] {
			return nil, nil, errors.New("Signal not allowed")
		}
		s, ok := allowedKillSignals[p.Signal]
		if !ok {
			return nil, nil, errors.New("Signal not allowed")
		}
		sig = s
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, nil, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return nil, nil, fmt.Errorf("signal process %d: %w", pid, err)
	}

	out, _ := json.Marshal(map[string]any{"pid": pid, "signaled": sig.String()})
	return out, nil, nil
}

func parsePositivePID(n json.Number) (int, error) {
	if n == "" {
		return 0, errors.New("Invalid PID: must be a positive integer")
	}
	i, err := n.Int64()
	if err != nil {
		// Int64() fails for fractional numbers like 1.5.
		return 0, errors.New("Invalid PID: must be a positive integer")
	}
	if i <= 0 {
		return 0, errors.New("Invalid PID: must be a positive integer")
	}
	return int(i), nil
}
