package connection

import (
	"errors"
	"testing"

	"github.com/gorilla/websocket"
)

func TestIsCleanClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"abnormal closure", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCleanClose(tt.err); got != tt.want {
				t.Errorf("isCleanClose(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConnectURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		token string
		want  string
	}{
		{"with token", "wss://api.takershield.com/ws", "abc123", "wss://api.takershield.com/ws?token=abc123"},
		{"token needing escape", "wss://api.takershield.com/ws", "a b&c", "wss://api.takershield.com/ws?token=a+b%26c"},
		{"no token", "ws://localhost:8080/ws", "", "ws://localhost:8080/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(SessionConfig{URL: tt.url, Token: tt.token}, Hooks{}, nil)
			if got := s.connectURL(); got != tt.want {
				t.Errorf("connectURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	s := NewSession(DefaultSessionConfig(), Hooks{}, nil)

	if err := s.Send([]byte(`{}`)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
	if s.IsConnected() {
		t.Error("IsConnected = true with no connection")
	}
}

func TestDefaultSessionConfigDelays(t *testing.T) {
	cfg := DefaultSessionConfig()

	if cfg.CleanCloseDelay >= cfg.ErrorDelay {
		t.Errorf("CleanCloseDelay %v should be shorter than ErrorDelay %v", cfg.CleanCloseDelay, cfg.ErrorDelay)
	}
	if cfg.BufferSize == 0 {
		t.Error("BufferSize = 0, want buffered")
	}
}
