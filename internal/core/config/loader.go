package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ordersvc/commander/internal/commander"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Gateways.Payment.Name == "" {
		cfg.Gateways.Payment.Name = "payment"
	}
	if cfg.Gateways.Shipping.Name == "" {
		cfg.Gateways.Shipping.Name = "shipping"
	}
	if cfg.Gateways.Messaging.Name == "" {
		cfg.Gateways.Messaging.Name = "messaging"
	}
	if cfg.Saga.StepTimeout == 0 {
		cfg.Saga.StepTimeout = commander.DefaultConfig.StepTimeout
	}
	if cfg.Saga.Retry.MaxAttempts == 0 {
		cfg.Saga.Retry.MaxAttempts = commander.DefaultConfig.Retry.MaxAttempts
	}
	if cfg.Saga.Retry.InitialDelay == 0 {
		cfg.Saga.Retry.InitialDelay = commander.DefaultConfig.Retry.InitialDelay
	}
	if cfg.Saga.Retry.MaxDelay == 0 {
		cfg.Saga.Retry.MaxDelay = commander.DefaultConfig.Retry.MaxDelay
	}
	if cfg.Saga.Retry.BackoffMultiple == 0 {
		cfg.Saga.Retry.BackoffMultiple = commander.DefaultConfig.Retry.BackoffMultiple
	}

	return &cfg, nil
}
