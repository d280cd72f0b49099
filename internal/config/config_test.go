package config

import (
	"strings"
	"testing"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("KEYCLOAK_USERNAME", "agent")
	t.Setenv("KEYCLOAK_PASSWORD", "secret")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ticketing.BaseURL != "http://localhost:8080" {
		t.Errorf("ticketing base URL = %q", cfg.Ticketing.BaseURL)
	}
	if cfg.Keycloak.Realm != "ticketing" {
		t.Errorf("realm = %q", cfg.Keycloak.Realm)
	}
	if !cfg.Ticketing.AutoUpdateState {
		t.Error("auto update state should default to true")
	}
	if cfg.Subagent.Timeout != "30m" {
		t.Errorf("subagent timeout = %q", cfg.Subagent.Timeout)
	}
	if !strings.HasSuffix(cfg.Workspace.Root, "worktrees") {
		t.Errorf("workspace root = %q", cfg.Workspace.Root)
	}
	if cfg.API.Port != 0 {
		t.Errorf("status API should be disabled by default, got port %d", cfg.API.Port)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("TICKETING_API_BASE_URL", "http://tickets.internal:9090")
	t.Setenv("AUTO_UPDATE_STATE", "false")
	t.Setenv("SUBAGENT_TIMEOUT", "90s")
	t.Setenv("STATUS_API_PORT", "8099")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ticketing.BaseURL != "http://tickets.internal:9090" {
		t.Errorf("ticketing base URL = %q", cfg.Ticketing.BaseURL)
	}
	if cfg.Ticketing.AutoUpdateState {
		t.Error("auto update state should be off")
	}
	if cfg.Subagent.Timeout != "90s" {
		t.Errorf("subagent timeout = %q", cfg.Subagent.Timeout)
	}
	if cfg.API.Port != 8099 {
		t.Errorf("status API port = %d", cfg.API.Port)
	}
}

func TestLoadFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("KEYCLOAK_USERNAME", "")
	t.Setenv("KEYCLOAK_PASSWORD", "")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "KEYCLOAK_USERNAME") {
		t.Errorf("error should name the missing variable, got %v", err)
	}
}

func TestValidate_SlackNeedsChannel(t *testing.T) {
	cfg := &Config{
		Ticketing: TicketingConfig{BaseURL: "http://localhost:8080"},
		Keycloak:  KeycloakConfig{Username: "u", Password: "p"},
		Notify:    NotifyConfig{SlackToken: "xoxb-token"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for slack token without channel")
	}
}

func TestValidate_AutopilotNeedsProject(t *testing.T) {
	cfg := &Config{
		Ticketing: TicketingConfig{BaseURL: "http://localhost:8080"},
		Keycloak:  KeycloakConfig{Username: "u", Password: "p"},
		Autopilot: AutopilotConfig{Schedule: "@every 10m"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for autopilot schedule without project")
	}
}
