package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stockpit/timersync/internal/gateway"
)

// Config is the optional YAML configuration for the gateway. Every field
// falls back to the gateway defaults when absent.
type Config struct {
	Gateway struct {
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
		ReadTimeoutSec  int `yaml:"read_timeout_sec"`
		PingIntervalSec int `yaml:"ping_interval_sec"`
		MaxMessageSize  int `yaml:"max_message_size"`
		SendQueueSize   int `yaml:"send_queue_size"`
	} `yaml:"gateway"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// gatewayConfig builds the gateway configuration, applying any YAML
// overrides on top of the defaults.
func gatewayConfig(cfg *Config) gateway.Config {
	gc := gateway.DefaultConfig()
	if cfg == nil {
		return gc
	}

	if cfg.Gateway.WriteTimeoutSec > 0 {
		gc.ConnectionConfig.WriteTimeout = time.Duration(cfg.Gateway.WriteTimeoutSec) * time.Second
	}
	if cfg.Gateway.ReadTimeoutSec > 0 {
		gc.ConnectionConfig.ReadTimeout = time.Duration(cfg.Gateway.ReadTimeoutSec) * time.Second
	}
	if cfg.Gateway.PingIntervalSec > 0 {
		gc.ConnectionConfig.PingInterval = time.Duration(cfg.Gateway.PingIntervalSec) * time.Second
	}
	if cfg.Gateway.MaxMessageSize > 0 {
		gc.ConnectionConfig.MaxMessageSize = int64(cfg.Gateway.MaxMessageSize)
	}
	if cfg.Gateway.SendQueueSize > 0 {
		gc.ConnectionConfig.SendQueueSize = cfg.Gateway.SendQueueSize
	}
	return gc
}
