// Package agentcfg models the agent's persisted configuration: the set of
// registered projects, the stable agent identity, and the on-disk store that
// holds them (see spec.md §3, §6).
package agentcfg

import "time"

// ProjectRegistration is one project this agent serves. projectCode is
// unique within an agent's configuration and is read-only once created by
// the login/configure flows.
type ProjectRegistration struct {
	ProjectCode string `json:"projectCode"`
	Token       string `json:"token"`
	APIURL      string `json:"apiUrl"`
	ProjectDir  string `json:"projectDir,omitempty"`
}

// AgentConfig is the root object persisted to config.json.
type AgentConfig struct {
	AgentID            string                `json:"agentId"`
	CreatedAt          time.Time             `json:"createdAt"`
	LastConnected      *time.Time            `json:"lastConnected,omitempty"`
	Projects           []ProjectRegistration `json:"projects"`
	AutoUpdate         *bool                 `json:"autoUpdate,omitempty"`
	DefaultProjectDir  string                `json:"defaultProjectDir,omitempty"`
	AgentChatMode      string                `json:"agentChatMode,omitempty"`
	Locale             string                `json:"locale,omitempty"`
	LocalMCPConfigPath string                `json:"localMcpConfigPath,omitempty"`

	// legacyToken/legacyAPIURL capture root-level token/apiUrl fields found
	// on a pre-migration config file. They are never written back out; see
	// Migrate.
	legacyToken  string
	legacyAPIURL string
}

// IsLegacy reports whether this config was loaded from the single-token
// schema (root-level token+apiUrl, no projects list) and has not yet been
// migrated.
func (c *AgentConfig) IsLegacy() bool {
	return len(c.Projects) == 0 && c.legacyToken != "" && c.legacyAPIURL != ""
}

// Migrate converts a legacy single-token config into the one-entry projects
// form in place. It is a no-op when the config is not legacy.
func (c *AgentConfig) Migrate() {
	if !c.IsLegacy() {
		return
	}
	c.Projects = []ProjectRegistration{{
		ProjectCode: "default",
		Token:       c.legacyToken,
		APIURL:      c.legacyAPIURL,
	}}
	c.legacyToken = ""
	c.legacyAPIURL = ""
}

// ProjectByCode returns the registration for the given project code, or
// false when no such project is configured.
func (c *AgentConfig) ProjectByCode(code string) (ProjectRegistration, bool) {
	for _, p := range c.Projects {
		if p.ProjectCode == code {
			return p, true
		}
	}
	return ProjectRegistration{}, false
}
