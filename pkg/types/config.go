// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for commands that fetch remote
// BibTeX sources.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"min=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bibfilter/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=20"`
}

// FilterConfig holds the default include and exclude lists.
type FilterConfig struct {
	// Include lists entry types to keep, separated by commas or spaces.
	// Empty means the default list of standard entry types.
	Include string `json:"include" yaml:"include" mapstructure:"include"`

	// Exclude lists entry types to drop even when included.
	Exclude string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`
}

// ServerConfig holds settings for the web surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"`

	// RateLimitPerMin caps filter requests per client IP per minute (0 disables).
	RateLimitPerMin int `json:"rate_limit_per_min" yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min" validate:"min=0"`

	// MaxBodyBytes caps the size of a submitted form or JSON body.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"min=0"`

	// AllowedOrigins enables CORS on the JSON API for these origins.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins" validate:"dive,required"`

	// ShutdownTimeout bounds graceful shutdown (default 5s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"min=0"`
}

// LibraryConfig holds settings for the local entry library.
type LibraryConfig struct {
	// Dir is the directory holding bibfilter.db.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"min=0"`
}

// Config groups all settings read from bibfilter.yaml and the environment.
type Config struct {
	HTTP    HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	Filter  FilterConfig  `json:"filter" yaml:"filter" mapstructure:"filter"`
	Server  ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	Library LibraryConfig `json:"library" yaml:"library" mapstructure:"library"`
}
