// Package config loads the global configuration.
//
// Every field declares its env mapping through struct tags:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() fills the struct by reflection.
package config

import (
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

// Config is the application configuration, one field per env var.
type Config struct {
	// Runtime
	Env        string `env:"PINGPONG_ENV" default:"production"`
	ListenAddr string `env:"PINGPONG_LISTEN_ADDR" default:":8085"`

	// Backend
	BackendBaseURL  string `env:"PINGPONG_BACKEND_URL" default:"http://localhost:9000"`
	BackendToken    string `env:"PINGPONG_BACKEND_TOKEN"`
	ProtocolVersion int    `env:"PINGPONG_PROTOCOL_VERSION" default:"3" min:"2"`

	// Engine
	PageLimit      int `env:"PINGPONG_PAGE_LIMIT" default:"20" min:"1"`
	PollIntervalMS int `env:"PINGPONG_POLL_INTERVAL_MS" default:"1000" min:"100"`
	PollTimeoutSec int `env:"PINGPONG_POLL_TIMEOUT_SEC" default:"120" min:"5"`

	// PostgreSQL (optional; system-log sink)
	PostgresConnStr     string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema      string `env:"POSTGRES_SCHEMA" default:"public"`
	PostgresPoolMinSize int    `env:"POSTGRES_POOL_MIN_SIZE" default:"1" min:"1"`
	PostgresPoolMaxSize int    `env:"POSTGRES_POOL_MAX_SIZE" default:"10" min:"1"`
}

// Load reads the configuration from the environment.
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
