package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL              string        // Full WebSocket URL including auth query parameter
	HandshakeTimeout time.Duration // Dial timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping period
	BufferSize       int           // Message channel buffer size
}

// SessionConfig configures the reconnecting transport session.
type SessionConfig struct {
	URL   string // Brain server WebSocket URL
	Token string // Auth token, passed as a query parameter

	// Per-cause retry delays. Retries are infinite with no backoff: the
	// dashboard is advisory and favors eventual reconnection over fast
	// failure.
	CleanCloseDelay time.Duration // After a clean websocket close
	ErrorDelay      time.Duration // After any other transport error

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	BufferSize       int
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CleanCloseDelay:  3 * time.Second,
		ErrorDelay:       5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		BufferSize:       1000,
	}
}

// Hooks are invoked by the session on connectivity transitions. Both are
// called from the session's run goroutine.
type Hooks struct {
	OnConnect    func(serverURL string)
	OnDisconnect func(err error)
}
