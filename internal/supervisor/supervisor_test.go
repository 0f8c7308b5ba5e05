package supervisor

import (
	"testing"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func TestResolve_CLIOverrideWins(t *testing.T) {
	configs, err := Resolve(CLIOverride{Token: "tok", APIURL: "https://api.example.com"}, t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(configs) != 1 || configs[0].ProjectCode != "cli-direct" {
		t.Fatalf("configs = %+v", configs)
	}
}

func TestResolve_EnvDefaultWhenNoConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENT_TOKEN", "env-tok")
	t.Setenv("AGENT_API_URL", "https://api.example.com")

	configs, err := Resolve(CLIOverride{}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(configs) != 1 || configs[0].ProjectCode != "env-default" {
		t.Fatalf("configs = %+v", configs)
	}
}

func TestResolve_NoProjectsIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(CLIOverride{}, dir)
	if err != ErrNoProjects {
		t.Fatalf("err = %v, want ErrNoProjects", err)
	}
}

func TestResolve_UsesConfiguredProjects(t *testing.T) {
	dir := t.TempDir()
	cfg := &agentcfg.AgentConfig{
		Projects: []agentcfg.ProjectRegistration{
			{ProjectCode: "p1", Token: "t1", APIURL: "https://a.example.com"},
			{ProjectCode: "p2", Token: "t2", APIURL: "https://b.example.com"},
		},
	}
	if err := agentcfg.Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	configs, err := Resolve(CLIOverride{}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(configs) != 2 || configs[0].ProjectCode != "p1" || configs[1].ProjectCode != "p2" {
		t.Fatalf("configs = %+v", configs)
	}
}

func TestValidateAPIURL(t *testing.T) {
	if err := ValidateAPIURL("https://example.com"); err != nil {
		t.Errorf("https rejected: %v", err)
	}
	if err := ValidateAPIURL("http://example.com"); err != nil {
		t.Errorf("http rejected: %v", err)
	}
	if err := ValidateAPIURL("ftp://example.com"); err == nil {
		t.Error("expected ftp to be rejected")
	}
}
