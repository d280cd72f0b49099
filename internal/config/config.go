package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the top-level ticketsmith configuration. It is built once at
// process start and injected into component constructors; nothing reads the
// environment after that.
type Config struct {
	Ticketing TicketingConfig
	Keycloak  KeycloakConfig
	Workspace WorkspaceConfig
	Subagent  SubagentConfig
	Notify    NotifyConfig
	Autopilot AutopilotConfig
	API       APIConfig
	DataDir   string
}

// TicketingConfig holds settings for the consumed ticketing HTTP API.
type TicketingConfig struct {
	BaseURL string
	// AutoUpdateState controls whether a successful run moves the ticket to
	// a review state. Opt-out via AUTO_UPDATE_STATE=false.
	AutoUpdateState bool
}

// KeycloakConfig holds identity-provider settings for the token provider.
type KeycloakConfig struct {
	BaseURL  string
	Realm    string
	ClientID string
	Username string
	Password string
}

// WorkspaceConfig holds worktree provisioning defaults.
type WorkspaceConfig struct {
	Root        string // default root directory for worktrees
	RepoPath    string // default repository path
	Provisioner string // path to the worktree-provisioning executable
}

// SubagentConfig holds coding-agent subprocess settings.
type SubagentConfig struct {
	Command string
	// Timeout is the raw timeout string: a millisecond count or a duration
	// with ms/s/m/h suffix. Parsed leniently at run time.
	Timeout string
}

// NotifyConfig holds optional Slack notification settings.
type NotifyConfig struct {
	SlackToken   string
	SlackChannel string
}

// AutopilotConfig holds optional cron-driven polling settings.
type AutopilotConfig struct {
	Schedule  string // cron expression or @every form; empty disables
	ProjectID string
	StateName string // workflow state to pick tickets from
}

// APIConfig holds the optional status API server settings.
type APIConfig struct {
	Host string
	Port int // 0 disables the status server
	Key  string
}

// LoadFromEnv builds the configuration from environment variables.
// Call arguments override these at the point of use; these override the
// hardcoded defaults here.
func LoadFromEnv() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	cfg := &Config{
		Ticketing: TicketingConfig{
			BaseURL:         getenv("TICKETING_API_BASE_URL", "http://localhost:8080"),
			AutoUpdateState: os.Getenv("AUTO_UPDATE_STATE") != "false",
		},
		Keycloak: KeycloakConfig{
			BaseURL:  getenv("KEYCLOAK_BASE_URL", "http://localhost:8081"),
			Realm:    getenv("KEYCLOAK_REALM", "ticketing"),
			ClientID: getenv("KEYCLOAK_CLIENT_ID", "myclient"),
			Username: os.Getenv("KEYCLOAK_USERNAME"),
			Password: os.Getenv("KEYCLOAK_PASSWORD"),
		},
		Workspace: WorkspaceConfig{
			Root:        getenv("WORKSPACE_ROOT", filepath.Join(home, "worktrees")),
			RepoPath:    getenv("REPO_PATH", "."),
			Provisioner: getenv("WORKTREE_SCRIPT", "create-worktree"),
		},
		Subagent: SubagentConfig{
			Command: getenv("SUBAGENT_COMMAND", "claude"),
			Timeout: getenv("SUBAGENT_TIMEOUT", "30m"),
		},
		Notify: NotifyConfig{
			SlackToken:   os.Getenv("SLACK_BOT_TOKEN"),
			SlackChannel: os.Getenv("SLACK_CHANNEL"),
		},
		Autopilot: AutopilotConfig{
			Schedule:  os.Getenv("AUTOPILOT_SCHEDULE"),
			ProjectID: os.Getenv("AUTOPILOT_PROJECT_ID"),
			StateName: getenv("AUTOPILOT_STATE", "Ready"),
		},
		API: APIConfig{
			Host: getenv("STATUS_API_HOST", "127.0.0.1"),
			Port: getenvInt("STATUS_API_PORT", 0),
			Key:  os.Getenv("STATUS_API_KEY"),
		},
		DataDir: getenv("TICKETSMITH_DATA_DIR", filepath.Join(home, ".ticketsmith")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Keycloak.Username == "" {
		errs = append(errs, "KEYCLOAK_USERNAME is required")
	}
	if c.Keycloak.Password == "" {
		errs = append(errs, "KEYCLOAK_PASSWORD is required")
	}
	if c.Ticketing.BaseURL == "" {
		errs = append(errs, "TICKETING_API_BASE_URL is required")
	}
	if c.Notify.SlackToken != "" && c.Notify.SlackChannel == "" {
		errs = append(errs, "SLACK_CHANNEL is required when SLACK_BOT_TOKEN is set")
	}
	if c.Autopilot.Schedule != "" && c.Autopilot.ProjectID == "" {
		errs = append(errs, "AUTOPILOT_PROJECT_ID is required when AUTOPILOT_SCHEDULE is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
