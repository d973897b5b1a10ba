package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAndValidateLocalMode(t *testing.T) {
	cfg := defaults()
	cfg.DiscordBotToken = "token"
	cfg.GatewaySecret = "secret"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.RemoteMode() {
		t.Fatal("expected local mode")
	}
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.RateLimit != defaultRateLimit {
		t.Fatalf("unexpected rate limit %d", cfg.RateLimit)
	}
}

func TestValidateLocalModeRequiresBotToken(t *testing.T) {
	cfg := defaults()
	cfg.GatewaySecret = "secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestValidateRemoteModeRequiresToken(t *testing.T) {
	cfg := defaults()
	cfg.RemoteGatewayURL = "http://localhost:8099"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing remote gateway token")
	}

	cfg.RemoteGatewayToken = "tok"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid remote config, got %v", err)
	}
	if !cfg.RemoteMode() {
		t.Fatal("expected remote mode")
	}
}

func TestYAMLFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http_addr: ":9000"
discord_bot_token: "file-token"
gateway_secret: "file-secret"
rate_limit: 5
request_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(EnvConfigFile, path)
	t.Setenv("CRAB_BRIDGE_GATEWAY_SECRET", "env-secret")

	cfg, err := FromYAMLAndEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("expected http addr from file, got %q", cfg.HTTPAddr)
	}
	if cfg.DiscordBotToken != "file-token" {
		t.Fatalf("expected bot token from file, got %q", cfg.DiscordBotToken)
	}
	if cfg.GatewaySecret != "env-secret" {
		t.Fatalf("env should win over file, got %q", cfg.GatewaySecret)
	}
	if cfg.RateLimit != 5 {
		t.Fatalf("expected rate limit 5, got %d", cfg.RateLimit)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
}

func TestYAMLFileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("no_such_field: true\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(EnvConfigFile, path)
	if _, err := FromYAMLAndEnv(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
