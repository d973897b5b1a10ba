package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	GatewaySecret      string `yaml:"gateway_secret"`
	RateLimit          int    `yaml:"rate_limit"`
	RemoteGatewayURL   string `yaml:"remote_gateway_url"`
	RemoteGatewayToken string `yaml:"remote_gateway_token"`
	DiscordBotToken    string `yaml:"discord_bot_token"`
	OwnerUserID        string `yaml:"owner_user_id"`
	DBDriver           string `yaml:"db_driver"`
	DBDSN              string `yaml:"db_dsn"`
	LockFilePath       string `yaml:"lock_file"`
	DownloadDir        string `yaml:"download_dir"`
	MemoryServiceURL   string `yaml:"memory_service_url"`
	MemoryServiceToken string `yaml:"memory_service_token"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key"`
	ModelName          string `yaml:"model"`
	Persona            string `yaml:"persona"`
	RequestTimeout     string `yaml:"request_timeout"`
}

func loadYAMLFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return parsed, nil
}

func mergeFile(cfg Config, file fileConfig) Config {
	merge := func(dst *string, v string) {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			*dst = trimmed
		}
	}

	merge(&cfg.HTTPAddr, file.HTTPAddr)
	merge(&cfg.GatewaySecret, file.GatewaySecret)
	if file.RateLimit > 0 {
		cfg.RateLimit = file.RateLimit
	}
	merge(&cfg.RemoteGatewayURL, file.RemoteGatewayURL)
	merge(&cfg.RemoteGatewayToken, file.RemoteGatewayToken)
	merge(&cfg.DiscordBotToken, file.DiscordBotToken)
	merge(&cfg.OwnerUserID, file.OwnerUserID)
	merge(&cfg.DBDriver, file.DBDriver)
	merge(&cfg.DBDSN, file.DBDSN)
	merge(&cfg.LockFilePath, file.LockFilePath)
	merge(&cfg.DownloadDir, file.DownloadDir)
	merge(&cfg.MemoryServiceURL, file.MemoryServiceURL)
	merge(&cfg.MemoryServiceToken, file.MemoryServiceToken)
	merge(&cfg.AnthropicAPIKey, file.AnthropicAPIKey)
	merge(&cfg.ModelName, file.ModelName)
	merge(&cfg.Persona, file.Persona)

	if raw := strings.TrimSpace(file.RequestTimeout); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err == nil && parsed > 0 {
			cfg.RequestTimeout = parsed
		}
	}
	return cfg
}
