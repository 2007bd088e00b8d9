// Package config loads and validates the adapter configuration.
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - account: the bot account identity
//   - gateway: the protocol client gateway connection
//   - server: the Satori HTTP/WebSocket listener
//   - media: public media proxy settings
//   - logging: log configuration
//
// # Example Configuration
//
//	account:
//	  uin: 10000
//	gateway:
//	  address: "ws://127.0.0.1:9555"
//	  token: "${GATEWAY_TOKEN}"
//	server:
//	  listen: "127.0.0.1:5140"
//	  token: "secret"
//	media:
//	  proxy_base: "https://media.example.org"
//	logging:
//	  level: "info"
//	  file: "logs/nekobox.log"
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen         = "127.0.0.1:5140"
	DefaultLogLevel       = "info"
	DefaultLogMaxSize     = 100 // MB
	DefaultLogMaxBackups  = 5
	DefaultLogMaxAge      = 30 // days
	DefaultLogCompress    = true
	DefaultLogEnableStdout = true
)

// Config is the top-level configuration structure.
type Config struct {
	Account AccountConfig `yaml:"account"`
	Gateway GatewayConfig `yaml:"gateway"`
	Server  ServerConfig  `yaml:"server"`
	Media   MediaConfig   `yaml:"media"`
	Logging LoggingConfig `yaml:"logging"`
}

// AccountConfig identifies the bot account.
type AccountConfig struct {
	Uin int64 `yaml:"uin"`
}

// GatewayConfig points at the protocol client gateway.
type GatewayConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
}

// ServerConfig configures the Satori listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
}

// MediaConfig configures outbound media URL rewriting. An empty ProxyBase
// disables proxying; signing parameters are still stripped.
type MediaConfig struct {
	ProxyBase string `yaml:"proxy_base"`
}

// LoggingConfig configures the log output.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	File         string `yaml:"file"`
	MaxSize      int    `yaml:"max_size"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxAge       int    `yaml:"max_age"`
	Compress     bool   `yaml:"compress"`
	EnableStdout bool   `yaml:"enable_stdout"`
}

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig performs basic validation and fills defaults
func validateConfig(config *Config) error {
	if config.Account.Uin <= 0 {
		return fmt.Errorf("account.uin must be a positive account id")
	}
	if config.Gateway.Address == "" {
		return fmt.Errorf("gateway.address is required")
	}
	if !strings.HasPrefix(config.Gateway.Address, "ws://") && !strings.HasPrefix(config.Gateway.Address, "wss://") {
		return fmt.Errorf("gateway.address must be a ws:// or wss:// URL, got %q", config.Gateway.Address)
	}

	if config.Server.Listen == "" {
		config.Server.Listen = DefaultListen
	}

	if base := config.Media.ProxyBase; base != "" {
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return fmt.Errorf("media.proxy_base must be an http(s) URL, got %q", base)
		}
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if !config.Logging.Compress {
		config.Logging.Compress = DefaultLogCompress
	}
	if !config.Logging.EnableStdout {
		config.Logging.EnableStdout = DefaultLogEnableStdout
	}

	return nil
}
