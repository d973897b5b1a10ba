package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvConfigFile         = "CRAB_BRIDGE_CONFIG_FILE"
	defaultHTTPAddr       = ":8099"
	defaultDBDriver       = "sqlite"
	defaultDBDSN          = ".crab-bridge/ledger.db"
	defaultLockFilePath   = ".crab-bridge/run/bridge.lock"
	defaultDownloadDir    = ".crab-bridge/downloads"
	defaultModelName      = "claude-sonnet-4-20250514"
	defaultRateLimit      = 60
	defaultRequestTimeout = 10 * time.Second
)

// Config carries everything the bridge needs for both execution modes.
// RemoteGatewayURL being set switches the whole process into proxy mode.
type Config struct {
	HTTPAddr      string
	GatewaySecret string
	RateLimit     int

	RemoteGatewayURL   string
	RemoteGatewayToken string

	DiscordBotToken string
	OwnerUserID     string

	DBDriver     string
	DBDSN        string
	LockFilePath string
	DownloadDir  string

	MemoryServiceURL   string
	MemoryServiceToken string

	AnthropicAPIKey string
	ModelName       string
	Persona         string

	RequestTimeout time.Duration
}

// RemoteMode reports whether this process forwards tool calls to a
// running gateway instead of holding the Discord connection itself.
func (c Config) RemoteMode() bool {
	return strings.TrimSpace(c.RemoteGatewayURL) != ""
}

func (c Config) Validate() error {
	if c.RemoteMode() {
		if strings.TrimSpace(c.RemoteGatewayToken) == "" {
			return fmt.Errorf("remote gateway token is required in proxy mode")
		}
		return nil
	}
	if strings.TrimSpace(c.DiscordBotToken) == "" {
		return fmt.Errorf("discord bot token is required in local mode")
	}
	if strings.TrimSpace(c.GatewaySecret) == "" {
		return fmt.Errorf("gateway secret is required in local mode")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit)
	}
	return nil
}

// FromYAMLAndEnv loads the optional YAML file named by
// CRAB_BRIDGE_CONFIG_FILE, then applies env overrides on top. Env always
// wins, same precedence as the rest of the stack.
func FromYAMLAndEnv() (Config, error) {
	cfg := defaults()

	path := strings.TrimSpace(os.Getenv(EnvConfigFile))
	if path != "" {
		loaded, err := loadYAMLFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeFile(cfg, loaded)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPAddr:       defaultHTTPAddr,
		RateLimit:      defaultRateLimit,
		DBDriver:       defaultDBDriver,
		DBDSN:          defaultDBDSN,
		LockFilePath:   defaultLockFilePath,
		DownloadDir:    defaultDownloadDir,
		ModelName:      defaultModelName,
		RequestTimeout: defaultRequestTimeout,
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "CRAB_BRIDGE_HTTP_ADDR")
	setString(&cfg.GatewaySecret, "CRAB_BRIDGE_GATEWAY_SECRET")
	setInt(&cfg.RateLimit, "CRAB_BRIDGE_RATE_LIMIT")
	setString(&cfg.RemoteGatewayURL, "CRAB_BRIDGE_REMOTE_GATEWAY_URL")
	setString(&cfg.RemoteGatewayToken, "CRAB_BRIDGE_REMOTE_GATEWAY_TOKEN")
	setString(&cfg.DiscordBotToken, "CRAB_BRIDGE_DISCORD_BOT_TOKEN")
	setString(&cfg.OwnerUserID, "CRAB_BRIDGE_OWNER_USER_ID")
	setString(&cfg.DBDriver, "CRAB_BRIDGE_DB_DRIVER")
	setString(&cfg.DBDSN, "CRAB_BRIDGE_DB_DSN")
	setString(&cfg.LockFilePath, "CRAB_BRIDGE_LOCK_FILE")
	setString(&cfg.DownloadDir, "CRAB_BRIDGE_DOWNLOAD_DIR")
	setString(&cfg.MemoryServiceURL, "CRAB_BRIDGE_MEMORY_SERVICE_URL")
	setString(&cfg.MemoryServiceToken, "CRAB_BRIDGE_MEMORY_SERVICE_TOKEN")
	setString(&cfg.AnthropicAPIKey, "CRAB_BRIDGE_ANTHROPIC_API_KEY")
	setString(&cfg.ModelName, "CRAB_BRIDGE_MODEL")
	setString(&cfg.Persona, "CRAB_BRIDGE_PERSONA")

	if raw := strings.TrimSpace(os.Getenv("CRAB_BRIDGE_REQUEST_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err == nil && parsed > 0 {
			cfg.RequestTimeout = parsed
		}
	}

	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	parsed, err := strconv.Atoi(raw)
	if err == nil && parsed > 0 {
		*dst = parsed
	}
}
