package config

import (
	"errors"
	"fmt"
	"strings"
)

var validQuoteSides = map[string]bool{
	"yes":     true,
	"no":      true,
	"both":    true,
	"unknown": true,
}

// Validate checks required fields and value ranges.
func (c *ObserverConfig) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server.url must be a ws:// or wss:// URL, got %q", c.Server.URL)
	}
	if c.Server.Token == "" {
		return errors.New("server.token is required")
	}

	if !validQuoteSides[c.Display.QuoteSide] {
		return fmt.Errorf("display.quote_side must be yes, no, both, or unknown, got %q", c.Display.QuoteSide)
	}
	if c.Display.PositionSize < 0 {
		return fmt.Errorf("display.position_size must be non-negative, got %d", c.Display.PositionSize)
	}

	if c.Journal.Enabled {
		db := c.Journal.Database
		if db.Host == "" {
			return errors.New("journal.database.host is required when journal is enabled")
		}
		if db.Name == "" {
			return errors.New("journal.database.name is required when journal is enabled")
		}
		if db.User == "" {
			return errors.New("journal.database.user is required when journal is enabled")
		}
		if db.Password == "" {
			return errors.New("journal.database.password is required when journal is enabled")
		}
		if db.MinConns > db.MaxConns {
			return fmt.Errorf("journal.database.min_conns (%d) exceeds max_conns (%d)", db.MinConns, db.MaxConns)
		}
	}

	return nil
}
