package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/takershield/observer/internal/connection"
	"github.com/takershield/observer/internal/protocol"
)

// errorStatusDuration keeps server-sent errors on screen longer than the
// default transient status.
const errorStatusDuration = 10 * time.Second

// Recorder receives every accepted risk event. Implemented by the optional
// journal; a nil Recorder disables recording.
type Recorder interface {
	Record(protocol.RiskEvent)
}

// Reconciler applies decoded inbound events to the session state. It is the
// only writer of State; everything else reads snapshots.
type Reconciler struct {
	state   *State
	decoder *protocol.Decoder
	journal Recorder
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler. journal may be nil.
func NewReconciler(state *State, decoder *protocol.Decoder, journal Recorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		state:   state,
		decoder: decoder,
		journal: journal,
		logger:  logger,
	}
}

// Run consumes raw frames until the channel closes or the context ends.
func (r *Reconciler) Run(ctx context.Context, msgs <-chan connection.TimestampedMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := r.decoder.Decode(msg.Data, msg.ReceivedAt)
			if err != nil || ev == nil {
				r.state.CountDecodeDrop()
				continue
			}
			r.Apply(ev)
		}
	}
}

// Apply dispatches a single decoded event into the state.
func (r *Reconciler) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.MarketUpdate:
		r.state.ApplyMarket(e)

	case protocol.RiskEvent:
		if r.state.ApplyRiskEvent(e) && r.journal != nil {
			r.journal.Record(e)
		}

	case protocol.Heartbeat:
		r.state.ApplyHeartbeat(e.ReceivedAt)

	case protocol.TickerAdded:
		r.state.SetStatus("Added: "+e.Ticker, 0)

	case protocol.TickerRemoved:
		r.state.RemoveMarket(e.Ticker)
		r.state.SetStatus("Removed: "+e.Ticker, 0)

	case protocol.TickerExpired:
		if e.Ticker != "" {
			r.state.RemoveMarket(e.Ticker)
			r.state.SetStatus("Expired: "+e.Ticker, 0)
		}

	case protocol.TickersList:
		if len(e.Watched) == 0 {
			r.state.SetStatus("Watching: none", 0)
		} else {
			r.state.SetStatus("Watching: "+strings.Join(e.Watched, ", "), 0)
		}

	case protocol.AvailableList:
		r.state.applyAvailableList(e.Markets)
		if len(e.Markets) == 0 {
			r.state.SetStatus("No contracts found", 0)
		} else {
			r.state.SetStatus(fmt.Sprintf("Found %d contracts", len(e.Markets)), errorStatusDuration)
		}

	case protocol.SearchResults:
		r.state.applySearchResults(e.Results)

	case protocol.ServerError:
		r.state.SetStatus("Server error: "+e.Message, errorStatusDuration)
		r.logger.Warn("server error", "message", e.Message)

	default:
		r.logger.Debug("unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

// OnConnect is the transport session's connect hook: market views are
// cleared (subscriptions are not durable across sessions), event history,
// regime history, and the watermark are kept.
func (r *Reconciler) OnConnect(serverURL string) {
	r.state.Connected(serverURL)
	r.logger.Info("session connected", "url", serverURL)
}

// OnDisconnect is the transport session's drop hook.
func (r *Reconciler) OnDisconnect(err error) {
	r.state.Disconnected()
	r.logger.Warn("session disconnected", "error", err)
}
