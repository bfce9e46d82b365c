// Package command serializes operator intents into wire commands and sends
// them on the transport session, surfacing failures as status messages
// rather than errors back to the key loop.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/takershield/observer/internal/connection"
	"github.com/takershield/observer/internal/protocol"
	"github.com/takershield/observer/internal/session"
)

// Outbound command types.
const (
	CmdAddTicker    = "add_ticker"
	CmdRemoveTicker = "remove_ticker"
	CmdSearchTicker = "search_ticker"
	CmdDemoBTC15m   = "demo_btc15m"
)

// Search correlation: the brain answers a search with an uncorrelated
// search_results broadcast, so we poll the session's result slot.
const (
	searchPollInterval = 500 * time.Millisecond
	searchPollAttempts = 6
)

// Command is the outbound wire envelope.
type Command struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Sender is the transport write surface the dispatcher needs.
type Sender interface {
	Send(data []byte) error
}

// Dispatcher sends operator commands to the brain server.
type Dispatcher struct {
	sender Sender
	state  *session.State
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, state *session.State, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		state:  state,
		logger: logger.With("component", "command"),
	}
}

// AddTicker subscribes a ticker.
func (d *Dispatcher) AddTicker(ticker string) {
	d.send(Command{Type: CmdAddTicker, Ticker: ticker})
}

// RemoveTicker unsubscribes a ticker.
func (d *Dispatcher) RemoveTicker(ticker string) {
	d.send(Command{Type: CmdRemoveTicker, Ticker: ticker})
}

// Demo asks the brain for the demo BTC 15-minute contract.
func (d *Dispatcher) Demo() {
	d.send(Command{Type: CmdDemoBTC15m})
	d.state.SetStatus("Demo: requesting BTC 15m contract", 0)
}

// Search issues a search and waits up to 3s for correlated results. The
// returned slice is nil on timeout or send failure; superseded searches
// never yield results.
func (d *Dispatcher) Search(ctx context.Context, query string) []protocol.SearchResult {
	gen := d.state.BeginSearch()

	if !d.send(Command{Type: CmdSearchTicker, Query: query}) {
		return nil
	}

	for i := 0; i < searchPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(searchPollInterval):
		}
		if results, ok := d.state.TakeSearchResults(gen); ok {
			return results
		}
	}

	d.state.SetStatus("Search timed out", 0)
	return nil
}

// send marshals and writes one command, reporting failure via status.
func (d *Dispatcher) send(cmd Command) bool {
	data, err := json.Marshal(cmd)
	if err != nil {
		d.logger.Error("failed to marshal command", "type", cmd.Type, "error", err)
		return false
	}

	if err := d.sender.Send(data); err != nil {
		if errors.Is(err, connection.ErrNotConnected) {
			d.state.SetStatus("Not connected", 0)
		} else {
			d.state.SetStatus("Send failed: "+err.Error(), 0)
		}
		d.logger.Warn("command send failed", "type", cmd.Type, "error", err)
		return false
	}

	return true
}
