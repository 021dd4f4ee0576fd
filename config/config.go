// Package config loads and persists easel configuration.
//
// Configuration is merged from defaults, an easel.toml discovered by walking
// up from the working directory, and EASEL_-prefixed environment variables.
package config

// Config represents the easel configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Publisher PublisherConfig `mapstructure:"publisher" toml:"publisher"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig configures the easel HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// PublisherConfig configures the publisher job trigger
type PublisherConfig struct {
	// TickerIntervalSeconds is how often the publisher checks for due
	// schedules (default: 30)
	TickerIntervalSeconds int `mapstructure:"ticker_interval_seconds" toml:"ticker_interval_seconds"`
	// BroadcastEventsPerSecond rate-limits publish events per WS client
	BroadcastEventsPerSecond float64 `mapstructure:"broadcast_events_per_second" toml:"broadcast_events_per_second"`
}

// DefaultServerPort is used when no port is configured.
const DefaultServerPort = 8710
