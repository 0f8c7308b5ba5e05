package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mbc-net/ai-support-agent/internal/chatpipeline"
	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

type stubAWSFetcher struct {
	creds map[string]awsCredentials
}

func (f *stubAWSFetcher) AWSCredentials(ctx context.Context, accountID string) (json.RawMessage, error) {
	return json.Marshal(f.creds[accountID])
}

func TestApplyProjectConfig_UpdatesChatState(t *testing.T) {
	chatState := newChatConfigState(chatpipeline.Config{})
	snapshot := &controlplane.ProjectConfigResponse{
		Agent: json.RawMessage(`{
			"agentEnabled": true,
			"allowedTools": ["Bash", "Read"],
			"claudeCodeConfig": {"addDirs": ["/srv/app"], "systemPrompt": "be terse"}
		}`),
	}

	if err := applyProjectConfig(context.Background(), nil, "", chatState, snapshot); err != nil {
		t.Fatalf("applyProjectConfig: %v", err)
	}

	got := chatState.snapshot()
	if len(got.AllowedTools) != 2 || got.AllowedTools[0] != "Bash" {
		t.Errorf("AllowedTools = %v", got.AllowedTools)
	}
	if got.SystemPrompt != "be terse" {
		t.Errorf("SystemPrompt = %q", got.SystemPrompt)
	}
	if len(got.AddDirs) != 1 || got.AddDirs[0] != "/srv/app" {
		t.Errorf("AddDirs = %v", got.AddDirs)
	}
}

func TestApplyProjectConfig_MaterialisesAWSProfiles(t *testing.T) {
	dir := t.TempDir()
	chatState := newChatConfigState(chatpipeline.Config{})
	fetcher := &stubAWSFetcher{creds: map[string]awsCredentials{
		"111111111111": {AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secret", Region: "us-east-1"},
	}}
	snapshot := &controlplane.ProjectConfigResponse{
		AWS: json.RawMessage(`{"accounts":[{"accountId":"111111111111","profile":"prod"}]}`),
	}

	if err := applyProjectConfig(context.Background(), fetcher, dir, chatState, snapshot); err != nil {
		t.Fatalf("applyProjectConfig: %v", err)
	}

	credsPath := filepath.Join(dir, ".aws", "credentials")
	data, err := os.ReadFile(credsPath)
	if err != nil {
		t.Fatalf("read credentials file: %v", err)
	}
	if !strings.Contains(string(data), "[prod]") || !strings.Contains(string(data), "AKIAEXAMPLE") {
		t.Errorf("unexpected credentials file contents: %s", data)
	}

	got := chatState.snapshot()
	if len(got.AWSEnvOverlay) == 0 {
		t.Fatalf("AWSEnvOverlay not set")
	}
}
