package agentcfg

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mbc-net/ai-support-agent/common/environment"
	"github.com/mbc-net/ai-support-agent/internal/sysinfo"
)

// ErrNoConfig is returned by Load when the config file does not exist.
var ErrNoConfig = errors.New("agentcfg: config file does not exist")

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// rawConfig mirrors the on-disk JSON shape, including the legacy root-level
// token/apiUrl fields that only ever appear pre-migration.
type rawConfig struct {
	AgentID            string                `json:"agentId"`
	CreatedAt          time.Time             `json:"createdAt"`
	LastConnected      *time.Time            `json:"lastConnected,omitempty"`
	Projects           []ProjectRegistration `json:"projects,omitempty"`
	AutoUpdate         *bool                 `json:"autoUpdate,omitempty"`
	DefaultProjectDir  string                `json:"defaultProjectDir,omitempty"`
	AgentChatMode      string                `json:"agentChatMode,omitempty"`
	Locale             string                `json:"locale,omitempty"`
	LocalMCPConfigPath string                `json:"localMcpConfigPath,omitempty"`
	Token              string                `json:"token,omitempty"`
	APIURL             string                `json:"apiUrl,omitempty"`
}

// UnmarshalJSON captures legacy root-level token/apiUrl into the unexported
// legacy fields instead of discarding them.
func (c *AgentConfig) UnmarshalJSON(data []byte) error {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.AgentID = raw.AgentID
	c.CreatedAt = raw.CreatedAt
	c.LastConnected = raw.LastConnected
	c.Projects = raw.Projects
	c.AutoUpdate = raw.AutoUpdate
	c.DefaultProjectDir = raw.DefaultProjectDir
	c.AgentChatMode = raw.AgentChatMode
	c.Locale = raw.Locale
	c.LocalMCPConfigPath = raw.LocalMCPConfigPath
	c.legacyToken = raw.Token
	c.legacyAPIURL = raw.APIURL
	return nil
}

// MarshalJSON never emits the legacy root-level token/apiUrl fields: once a
// config round-trips through this type it is always in the projects form
// (Migrate is expected to have run first for legacy configs).
func (c AgentConfig) MarshalJSON() ([]byte, error) {
	raw := rawConfig{
		AgentID:            c.AgentID,
		CreatedAt:          c.CreatedAt,
		LastConnected:      c.LastConnected,
		Projects:           c.Projects,
		AutoUpdate:         c.AutoUpdate,
		DefaultProjectDir:  c.DefaultProjectDir,
		AgentChatMode:      c.AgentChatMode,
		Locale:             c.Locale,
		LocalMCPConfigPath: c.LocalMCPConfigPath,
	}
	if raw.Projects == nil {
		raw.Projects = []ProjectRegistration{}
	}
	return json.Marshal(raw)
}

// ConfigDir resolves the agent's configuration directory per spec.md §6:
// AGENT_CONFIG_DIR may be absolute, "~"-prefixed, or relative to the CWD;
// otherwise it defaults to $HOME/.ai-support-agent.
func ConfigDir() (string, error) {
	if v := environment.StringOr("AGENT_CONFIG_DIR", ""); v != "" {
		return expandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("agentcfg: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ai-support-agent"), nil
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("agentcfg: resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("agentcfg: resolve cwd: %w", err)
	}
	return filepath.Join(cwd, p), nil
}

// ConfigPath returns the path to config.json under dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.json")
}

// Load reads and parses the config file under dir. It returns ErrNoConfig
// (wrapped) when the file is absent. Legacy configs are migrated in memory
// but not written back — callers that intend to persist should call Save
// explicitly after Migrate.
func Load(dir string) (*AgentConfig, error) {
	path := ConfigPath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("agentcfg: read %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agentcfg: parse %s: %w", path, err)
	}
	cfg.Migrate()
	return &cfg, nil
}

// Save atomically writes cfg to dir/config.json: it writes to a temp file in
// the same directory and renames it into place, so a crash mid-write leaves
// either the previous valid file or the new one, never a partial file. The
// directory is forced to 0700 and the file to 0600 on every save.
func Save(dir string, cfg *AgentConfig) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("agentcfg: create config dir %s: %w", dir, err)
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		return fmt.Errorf("agentcfg: chmod config dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("agentcfg: marshal config: %w", err)
	}

	path := ConfigPath(dir)
	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("agentcfg: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("agentcfg: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("agentcfg: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		return fmt.Errorf("agentcfg: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("agentcfg: rename into place: %w", err)
	}
	return nil
}

// GenerateAgentID creates a new stable agent ID of the form
// "{sanitised-hostname}-{16 hex chars}".
func GenerateAgentID(hostname string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("agentcfg: generate id entropy: %w", err)
	}
	return fmt.Sprintf("%s-%s", sysinfo.SanitizeHostname(hostname), hex.EncodeToString(buf)), nil
}
