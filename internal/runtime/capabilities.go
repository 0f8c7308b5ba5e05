package runtime

import (
	"context"
	"os/exec"

	"github.com/mbc-net/ai-support-agent/internal/chatpipeline"
)

// capabilities is the result of probing a host for chat backends.
type capabilities struct {
	available []chatpipeline.Mode
	active    chatpipeline.Mode
}

// probeCapabilities runs a bounded `--version` probe against the local
// coding CLI and checks for a remote API key, then derives the set of
// available chat modes and the active one: local preferred, overridable by
// localOverride, falling back to serverDefault (spec.md §4.6 step 1).
func probeCapabilities(executable, remoteAPIKey, localOverride string, serverDefault chatpipeline.Mode) capabilities {
	var available []chatpipeline.Mode
	if localCLIAvailable(executable) {
		available = append(available, chatpipeline.ModeLocalCLI)
	}
	if remoteAPIKey != "" {
		available = append(available, chatpipeline.ModeAPI)
	}

	active := chooseActiveMode(available, localOverride, serverDefault)
	return capabilities{available: available, active: active}
}

func chooseActiveMode(available []chatpipeline.Mode, localOverride string, serverDefault chatpipeline.Mode) chatpipeline.Mode {
	if m := chatpipeline.Mode(localOverride); m != "" && containsMode(available, m) {
		return m
	}
	if containsMode(available, chatpipeline.ModeLocalCLI) {
		return chatpipeline.ModeLocalCLI
	}
	if serverDefault != "" && containsMode(available, serverDefault) {
		return serverDefault
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

func containsMode(modes []chatpipeline.Mode, m chatpipeline.Mode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

// localCLIAvailable runs "<executable> --version" with a short timeout and
// reports whether it exited cleanly.
func localCLIAvailable(executable string) bool {
	if executable == "" {
		executable = "claude"
	}
	ctx, cancel := context.WithTimeout(context.Background(), capabilityProbeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, executable, "--version")
	return cmd.Run() == nil
}

// availableModeStrings converts the probed modes to the string form the
// control-plane heartbeat payload expects.
func availableModeStrings(modes []chatpipeline.Mode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}
