package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mbc-net/ai-support-agent/internal/chatpipeline"
	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

// agentSection mirrors the "agent" object of a project config snapshot
// (spec.md §3).
type agentSection struct {
	AgentEnabled           bool              `json:"agentEnabled"`
	BuiltinAgentEnabled    bool              `json:"builtinAgentEnabled"`
	BuiltinFallbackEnabled bool              `json:"builtinFallbackEnabled"`
	ExternalAgentEnabled   bool              `json:"externalAgentEnabled"`
	AllowedTools           []string          `json:"allowedTools"`
	ClaudeCodeConfig       *claudeCodeConfig `json:"claudeCodeConfig,omitempty"`
}

type claudeCodeConfig struct {
	AddDirs       []string `json:"addDirs"`
	SystemPrompt  string   `json:"systemPrompt"`
	MCPConfigPath string   `json:"mcpConfigPath"`
}

// chatConfigState is the mutable slice of chatpipeline.Config a runtime
// rebuilds on every config sync and reads fresh for each chat dispatch.
type chatConfigState struct {
	mu        sync.Mutex
	base      chatpipeline.Config
	awsLoaded atomic.Bool
}

func newChatConfigState(base chatpipeline.Config) *chatConfigState {
	return &chatConfigState{base: base}
}

func (s *chatConfigState) snapshot() chatpipeline.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

func (s *chatConfigState) applyAgentSection(section agentSection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.AllowedTools = section.AllowedTools
	if section.ClaudeCodeConfig != nil {
		s.base.AddDirs = section.ClaudeCodeConfig.AddDirs
		s.base.SystemPrompt = section.ClaudeCodeConfig.SystemPrompt
		s.base.MCPConfigPath = section.ClaudeCodeConfig.MCPConfigPath
	}
}

func (s *chatConfigState) applyAWSOverlay(overlay []string) {
	if len(overlay) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.AWSEnvOverlay = overlay
}

// applyProjectConfig decodes a fetched snapshot's agent/aws sections and
// applies them to chatState, materialising AWS profile files when accounts
// are present and a project directory is known (spec.md §4.6 step 6,
// §4.8).
func applyProjectConfig(ctx context.Context, client awsCredentialsFetcher, projectDir string, chatState *chatConfigState, snapshot *controlplane.ProjectConfigResponse) error {
	if snapshot == nil {
		return nil
	}

	if len(snapshot.Agent) > 0 {
		var section agentSection
		if err := json.Unmarshal(snapshot.Agent, &section); err != nil {
			return fmt.Errorf("runtime: decode agent config: %w", err)
		}
		chatState.applyAgentSection(section)
	}

	if len(snapshot.AWS) > 0 {
		var section awsAccountsSection
		if err := json.Unmarshal(snapshot.AWS, &section); err != nil {
			return fmt.Errorf("runtime: decode aws config: %w", err)
		}
		overlay, err := materialiseAWSProfiles(ctx, client, projectDir, section)
		if err != nil {
			slog.Warn("runtime: aws profile materialisation failed", "err", err)
		} else {
			chatState.applyAWSOverlay(overlay)
		}
	}

	return nil
}
