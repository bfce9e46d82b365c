package connection

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is a single logical connection to the brain server that survives
// transport failures: it dials, pumps messages, and on any drop waits the
// per-cause delay and dials again, forever. There is no backoff schedule.
type Session struct {
	cfg    SessionConfig
	hooks  Hooks
	logger *slog.Logger

	// msgs is the merged message stream across all underlying connections,
	// so consumers hold one channel across reconnects.
	msgs chan TimestampedMessage

	mu     sync.RWMutex
	client Client

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSession creates a reconnecting session. hooks fields may be nil.
func NewSession(cfg SessionConfig, hooks Hooks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		hooks:  hooks,
		logger: logger.With("component", "session"),
		msgs:   make(chan TimestampedMessage, cfg.BufferSize),
	}
}

// Messages returns the merged inbound message stream. The channel stays open
// across reconnects and closes only when the session stops.
func (s *Session) Messages() <-chan TimestampedMessage {
	return s.msgs
}

// Send writes a frame on the current connection. Returns ErrNotConnected
// while between connections.
func (s *Session) Send(data []byte) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	return client.Send(data)
}

// IsConnected reports whether a live connection is up right now.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && s.client.IsConnected()
}

// Start launches the reconnect loop.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.msgs)
		s.run(ctx)
	}()
}

// Stop tears down the current connection and waits for the loop to exit.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) run(ctx context.Context) {
	connectURL := s.connectURL()

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runOnce(ctx, connectURL)
		if ctx.Err() != nil {
			return
		}

		delay := s.cfg.ErrorDelay
		if isCleanClose(err) {
			delay = s.cfg.CleanCloseDelay
		}
		s.logger.Info("reconnecting", "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOnce dials, pumps messages until the connection fails, and returns the
// terminal error for retry-delay classification.
func (s *Session) runOnce(ctx context.Context, connectURL string) error {
	client := NewClient(ClientConfig{
		URL:              connectURL,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		PingInterval:     s.cfg.PingInterval,
		BufferSize:       s.cfg.BufferSize,
	}, s.logger)

	if err := client.Connect(ctx); err != nil {
		if s.hooks.OnDisconnect != nil {
			s.hooks.OnDisconnect(err)
		}
		return err
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	if s.hooks.OnConnect != nil {
		s.hooks.OnConnect(s.cfg.URL)
	}

	err := s.pump(ctx, client)

	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	client.Close()

	if s.hooks.OnDisconnect != nil {
		s.hooks.OnDisconnect(err)
	}
	return err
}

// pump forwards messages from one connection into the merged stream until
// the connection errors or the context ends.
func (s *Session) pump(ctx context.Context, client Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-client.Errors():
			return err
		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			select {
			case s.msgs <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// connectURL appends the auth token as a query parameter.
func (s *Session) connectURL() string {
	if s.cfg.Token == "" {
		return s.cfg.URL
	}
	return s.cfg.URL + "?token=" + url.QueryEscape(s.cfg.Token)
}

// isCleanClose reports whether the connection ended with a normal websocket
// close handshake, which earns the shorter reconnect delay.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
