package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/takershield/observer/internal/connection"
	"github.com/takershield/observer/internal/protocol"
	"github.com/takershield/observer/internal/session"
)

type fakeSender struct {
	sent [][]byte
	err  error
}

func (f *fakeSender) Send(data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSender) lastCommand(t *testing.T) Command {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no command sent")
	}
	var cmd Command
	if err := json.Unmarshal(f.sent[len(f.sent)-1], &cmd); err != nil {
		t.Fatalf("unmarshal sent command: %v", err)
	}
	return cmd
}

func TestAddRemoveTickerWire(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, session.NewState(), nil)

	d.AddTicker("KXBTC-24DEC31")
	cmd := sender.lastCommand(t)
	if cmd.Type != CmdAddTicker || cmd.Ticker != "KXBTC-24DEC31" {
		t.Errorf("sent %+v, want add_ticker KXBTC-24DEC31", cmd)
	}

	d.RemoveTicker("KXBTC-24DEC31")
	cmd = sender.lastCommand(t)
	if cmd.Type != CmdRemoveTicker {
		t.Errorf("Type = %q, want %q", cmd.Type, CmdRemoveTicker)
	}

	// Query must be omitted from ticker commands.
	if string(sender.sent[0]) != `{"type":"add_ticker","ticker":"KXBTC-24DEC31"}` {
		t.Errorf("wire = %s, unexpected fields", sender.sent[0])
	}
}

func TestDemoWire(t *testing.T) {
	sender := &fakeSender{}
	state := session.NewState()
	d := NewDispatcher(sender, state, nil)

	d.Demo()

	cmd := sender.lastCommand(t)
	if cmd.Type != CmdDemoBTC15m {
		t.Errorf("Type = %q, want %q", cmd.Type, CmdDemoBTC15m)
	}
	if cmd.Ticker != "" || cmd.Query != "" {
		t.Errorf("demo command carries payload: %+v", cmd)
	}
}

func TestSendFailureSurfacesAsStatus(t *testing.T) {
	state := session.NewState()

	d := NewDispatcher(&fakeSender{err: connection.ErrNotConnected}, state, nil)
	d.AddTicker("T1")
	if got := state.Snapshot().Status; got != "Not connected" {
		t.Errorf("Status = %q, want %q", got, "Not connected")
	}

	d = NewDispatcher(&fakeSender{err: errors.New("broken pipe")}, state, nil)
	d.AddTicker("T1")
	if got := state.Snapshot().Status; got != "Send failed: broken pipe" {
		t.Errorf("Status = %q, want %q", got, "Send failed: broken pipe")
	}
}

func TestSearchReturnsCorrelatedResults(t *testing.T) {
	sender := &fakeSender{}
	state := session.NewState()
	d := NewDispatcher(sender, state, nil)

	// Results arrive while the dispatcher is polling.
	go func() {
		time.Sleep(50 * time.Millisecond)
		r := session.NewReconciler(state, protocol.NewDecoder(nil), nil, nil)
		r.Apply(protocol.SearchResults{Results: []protocol.SearchResult{{Ticker: "KXFED-24"}}})
	}()

	results := d.Search(context.Background(), "KXFED")
	if len(results) != 1 || results[0].Ticker != "KXFED-24" {
		t.Fatalf("Search = %+v, want [KXFED-24]", results)
	}

	cmd := sender.lastCommand(t)
	if cmd.Type != CmdSearchTicker || cmd.Query != "KXFED" {
		t.Errorf("sent %+v, want search_ticker KXFED", cmd)
	}
}

func TestSearchTimesOut(t *testing.T) {
	state := session.NewState()
	d := NewDispatcher(&fakeSender{}, state, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if results := d.Search(ctx, "NOTHING"); results != nil {
		t.Errorf("Search = %+v, want nil on timeout", results)
	}
}

func TestSearchSendFailureSkipsPolling(t *testing.T) {
	state := session.NewState()
	d := NewDispatcher(&fakeSender{err: connection.ErrNotConnected}, state, nil)

	start := time.Now()
	if results := d.Search(context.Background(), "Q"); results != nil {
		t.Errorf("Search = %+v, want nil", results)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Search blocked %v on a failed send, want immediate return", elapsed)
	}
}
