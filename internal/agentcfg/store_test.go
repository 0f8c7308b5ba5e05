package agentcfg_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func TestLoad_MigratesLegacyConfig(t *testing.T) {
	dir := t.TempDir()
	legacy := `{
		"agentId": "host-aaaaaaaaaaaaaaaa",
		"createdAt": "2026-01-01T00:00:00Z",
		"token": "tok_legacy",
		"apiUrl": "https://api.example.com"
	}`
	if err := os.WriteFile(agentcfg.ConfigPath(dir), []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := agentcfg.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Projects) != 1 {
		t.Fatalf("expected 1 migrated project, got %d", len(cfg.Projects))
	}
	got := cfg.Projects[0]
	if got.ProjectCode != "default" || got.Token != "tok_legacy" || got.APIURL != "https://api.example.com" {
		t.Fatalf("unexpected migrated project: %+v", got)
	}
	if cfg.IsLegacy() {
		t.Fatal("config should no longer report as legacy after Migrate")
	}
}

func TestSave_OmitsLegacyRootFields(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"agentId":"a","createdAt":"2026-01-01T00:00:00Z","token":"tok","apiUrl":"https://x"}`
	if err := os.WriteFile(agentcfg.ConfigPath(dir), []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := agentcfg.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := agentcfg.Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(agentcfg.ConfigPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["token"]; ok {
		t.Error("saved config still has root-level token")
	}
	if _, ok := m["apiUrl"]; ok {
		t.Error("saved config still has root-level apiUrl")
	}
	projects, _ := m["projects"].([]any)
	if len(projects) != 1 {
		t.Fatalf("expected 1 project in saved file, got %v", m["projects"])
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	want := &agentcfg.AgentConfig{
		AgentID:   "host-0123456789abcdef",
		CreatedAt: now,
		Projects: []agentcfg.ProjectRegistration{
			{ProjectCode: "default", Token: "tok", APIURL: "https://api.example.com", ProjectDir: "/srv/app"},
		},
	}
	if err := agentcfg.Save(dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := agentcfg.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AgentID != want.AgentID {
		t.Errorf("AgentID: got %q want %q", got.AgentID, want.AgentID)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt: got %v want %v", got.CreatedAt, want.CreatedAt)
	}
	if len(got.Projects) != 1 || got.Projects[0] != want.Projects[0] {
		t.Errorf("Projects: got %+v want %+v", got.Projects, want.Projects)
	}
}

func TestSave_FileModeIsRestricted(t *testing.T) {
	dir := t.TempDir()
	cfg := &agentcfg.AgentConfig{AgentID: "host-0000000000000000", CreatedAt: time.Now().UTC()}
	if err := agentcfg.Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fi, err := os.Stat(agentcfg.ConfigPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", fi.Mode().Perm())
	}

	di, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if di.Mode().Perm() != 0o700 {
		t.Errorf("config dir mode = %v, want 0700", di.Mode().Perm())
	}
}

func TestSave_LeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	cfg := &agentcfg.AgentConfig{AgentID: "host-1111111111111111", CreatedAt: time.Now().UTC()}
	if err := agentcfg.Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestLoad_MissingFileReturnsErrNoConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := agentcfg.Load(dir)
	if err != agentcfg.ErrNoConfig {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}
}

func TestConfigDir_HonorsEnvOverride(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom-agent-dir")
	t.Setenv("AGENT_CONFIG_DIR", custom)

	dir, err := agentcfg.ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if dir != custom {
		t.Errorf("ConfigDir = %q, want %q", dir, custom)
	}
}

func TestGenerateAgentID_IsStableShapeAndUnique(t *testing.T) {
	id1, err := agentcfg.GenerateAgentID("My_Host.example")
	if err != nil {
		t.Fatalf("GenerateAgentID: %v", err)
	}
	id2, err := agentcfg.GenerateAgentID("My_Host.example")
	if err != nil {
		t.Fatalf("GenerateAgentID: %v", err)
	}
	if id1 == id2 {
		t.Fatal("two generated IDs should not collide")
	}
	const prefix = "my-host-example-"
	if len(id1) != len(prefix)+16 {
		t.Fatalf("unexpected id shape: %q", id1)
	}
	if id1[:len(prefix)] != prefix {
		t.Fatalf("expected hostname prefix %q, got %q", prefix, id1)
	}
}

func TestProjectByCode(t *testing.T) {
	cfg := &agentcfg.AgentConfig{
		Projects: []agentcfg.ProjectRegistration{
			{ProjectCode: "alpha", Token: "t1"},
			{ProjectCode: "beta", Token: "t2"},
		},
	}
	if _, ok := cfg.ProjectByCode("beta"); !ok {
		t.Fatal("expected to find beta project")
	}
	if _, ok := cfg.ProjectByCode("missing"); ok {
		t.Fatal("did not expect to find missing project")
	}
}
