package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerURL        = "wss://api.takershield.com/ws"
	DefaultPositionSize     = 100
	DefaultQuoteSide        = "unknown"
	DefaultRefreshInterval  = 250 * time.Millisecond
	DefaultStatusDuration   = 5 * time.Second
	DefaultCleanCloseDelay  = 3 * time.Second
	DefaultErrorDelay       = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultBufferSize       = 1000
	DefaultLogPath          = "observer.log"
	DefaultLogLevel         = "info"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 100
	DefaultFlushInterval    = 1 * time.Second
	DefaultJournalBuffer    = 1000
)

// ApplyDefaults fills in zero-valued optional fields.
func (c *ObserverConfig) ApplyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}

	// Display defaults
	if c.Display.PositionSize == 0 {
		c.Display.PositionSize = DefaultPositionSize
	}
	if c.Display.QuoteSide == "" {
		c.Display.QuoteSide = DefaultQuoteSide
	}
	if c.Display.RefreshInterval == 0 {
		c.Display.RefreshInterval = DefaultRefreshInterval
	}
	if c.Display.StatusDuration == 0 {
		c.Display.StatusDuration = DefaultStatusDuration
	}

	// Connection defaults
	if c.Connection.CleanCloseDelay == 0 {
		c.Connection.CleanCloseDelay = DefaultCleanCloseDelay
	}
	if c.Connection.ErrorDelay == 0 {
		c.Connection.ErrorDelay = DefaultErrorDelay
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Log defaults
	if c.Log.Path == "" {
		c.Log.Path = DefaultLogPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// Journal defaults
	if c.Journal.Enabled {
		applyDBDefaults(&c.Journal.Database)
		if c.Journal.BatchSize == 0 {
			c.Journal.BatchSize = DefaultBatchSize
		}
		if c.Journal.FlushInterval == 0 {
			c.Journal.FlushInterval = DefaultFlushInterval
		}
		if c.Journal.BufferSize == 0 {
			c.Journal.BufferSize = DefaultJournalBuffer
		}
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
