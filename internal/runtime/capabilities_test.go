package runtime

import (
	"testing"

	"github.com/mbc-net/ai-support-agent/internal/chatpipeline"
)

func TestChooseActiveMode_PrefersLocal(t *testing.T) {
	available := []chatpipeline.Mode{chatpipeline.ModeLocalCLI, chatpipeline.ModeAPI}
	got := chooseActiveMode(available, "", "")
	if got != chatpipeline.ModeLocalCLI {
		t.Errorf("active mode = %q, want local", got)
	}
}

func TestChooseActiveMode_LocalOverrideWins(t *testing.T) {
	available := []chatpipeline.Mode{chatpipeline.ModeLocalCLI, chatpipeline.ModeAPI}
	got := chooseActiveMode(available, string(chatpipeline.ModeAPI), "")
	if got != chatpipeline.ModeAPI {
		t.Errorf("active mode = %q, want api", got)
	}
}

func TestChooseActiveMode_FallsBackToServerDefault(t *testing.T) {
	available := []chatpipeline.Mode{chatpipeline.ModeAPI}
	got := chooseActiveMode(available, "", chatpipeline.ModeAPI)
	if got != chatpipeline.ModeAPI {
		t.Errorf("active mode = %q, want api", got)
	}
}

func TestChooseActiveMode_NoneAvailable(t *testing.T) {
	got := chooseActiveMode(nil, "", "")
	if got != "" {
		t.Errorf("active mode = %q, want empty", got)
	}
}

func TestProbeCapabilities_NoLocalBinaryNoAPIKey(t *testing.T) {
	caps := probeCapabilities("definitely-not-a-real-binary-xyz", "", "", "")
	if len(caps.available) != 0 {
		t.Errorf("available = %v, want empty", caps.available)
	}
	if caps.active != "" {
		t.Errorf("active = %q, want empty", caps.active)
	}
}

func TestProbeCapabilities_APIKeyOnly(t *testing.T) {
	caps := probeCapabilities("definitely-not-a-real-binary-xyz", "key-123", "", "")
	if len(caps.available) != 1 || caps.available[0] != chatpipeline.ModeAPI {
		t.Fatalf("available = %v, want [api]", caps.available)
	}
	if caps.active != chatpipeline.ModeAPI {
		t.Errorf("active = %q, want api", caps.active)
	}
}
