package config

import "time"

// ObserverConfig is the root configuration for an observer instance.
type ObserverConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Display    DisplayConfig    `yaml:"display"`
	Connection ConnectionConfig `yaml:"connection"`
	Log        LogConfig        `yaml:"log"`
	Journal    JournalConfig    `yaml:"journal"`
}

// ServerConfig identifies the brain server endpoint.
type ServerConfig struct {
	URL   string `yaml:"url"`   // WebSocket URL (e.g., wss://api.takershield.com/ws)
	Token string `yaml:"token"` // Auth token, passed as a query parameter
}

// DisplayConfig holds presentation settings. PositionSize and QuoteSide are
// display context only; nothing in the engine computes with them.
type DisplayConfig struct {
	PositionSize    int           `yaml:"position_size"`
	QuoteSide       string        `yaml:"quote_side"` // yes, no, both, unknown
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	StatusDuration  time.Duration `yaml:"status_duration"`
}

// ConnectionConfig holds transport session settings.
type ConnectionConfig struct {
	CleanCloseDelay  time.Duration `yaml:"clean_close_delay"` // retry wait after a clean close
	ErrorDelay       time.Duration `yaml:"error_delay"`       // retry wait after any other transport error
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	BufferSize       int           `yaml:"buffer_size"`
}

// LogConfig holds logging settings. Logs go to a file because the terminal
// belongs to the dashboard.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// JournalConfig holds the optional write-only risk-event journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
