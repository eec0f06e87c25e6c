package config

import (
	"github.com/ordersvc/commander/internal/api"
	"github.com/ordersvc/commander/internal/commander"
	"github.com/ordersvc/commander/internal/infra/gateway"
	redisclient "github.com/ordersvc/commander/internal/infra/redis"
	"github.com/ordersvc/commander/internal/infra/storage/postgres"
	"github.com/ordersvc/commander/internal/reconcile"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    api.Config         `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Gateways  GatewaysConfig     `yaml:"gateways"`
	Saga      commander.Config   `yaml:"saga"`
	Reconcile reconcile.Config   `yaml:"reconcile"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GatewaysConfig holds the downstream service endpoints.
type GatewaysConfig struct {
	Payment   gateway.Config `yaml:"payment"`
	Shipping  gateway.Config `yaml:"shipping"`
	Messaging gateway.Config `yaml:"messaging"`
}
