// Package session holds the canonical in-memory model of the observer: the
// per-ticker market view, active risk events, regime-transition history,
// connectivity facts, and transient status. The Reconciler is the sole
// writer; the render and command paths read through immutable snapshots.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takershield/observer/internal/protocol"
)

// Display and retention bounds.
const (
	// MaxVisibleEvents caps the visible risk-event list.
	MaxVisibleEvents = 20

	// LegacyEventCap bounds the would-cancel fallback buffer.
	LegacyEventCap = 20

	// LegacyVisible is how many fallback entries a snapshot surfaces; the
	// rest of the buffer still counts toward the cancel aggregate.
	LegacyVisible = 5

	// VisibilityHorizon is how long a completed event stays visible past t0.
	VisibilityHorizon = 60 * time.Second

	// StaleAfter is the heartbeat age past which data is considered stale.
	StaleAfter = 15 * time.Second

	// DefaultStatusDuration is the lifetime of a transient status message.
	DefaultStatusDuration = 5 * time.Second
)

// MarketSnapshot is the per-ticker market view, replaced wholesale on every
// update and never merged field-by-field.
type MarketSnapshot struct {
	Ticker           string
	Bid              int
	Ask              int
	Mid              float64
	Spread           int
	Depth            int
	Regime           protocol.Regime
	TriggerReasons   []string
	CautionReasons   []string
	TimeToCloseS     float64
	TimeType         string
	P99Move          float64
	PollLatencyMs    float64
	ComputeLatencyMs float64
	TimestampMs      int64
	ReceivedAt       time.Time
}

// ConnectionFacts describes the current transport session. Replaced wholesale
// on every (re)connect.
type ConnectionFacts struct {
	Connected       bool
	SessionID       string
	ServerURL       string
	ConnectedAt     time.Time
	LastHeartbeat   time.Time
	UpdatesReceived int64
	DecodeDrops     int64

	// WSLatencyMs is the raw signed one-way latency estimate from the last
	// market update. Clock skew can make it negative; display uses the
	// absolute value, the raw value is kept for future correction logic.
	WSLatencyMs float64
}

type statusMessage struct {
	text  string
	setAt time.Time
	ttl   time.Duration
}

type searchSlot struct {
	gen     uint64
	results []protocol.SearchResult
	filled  bool
}

// State is the shared session aggregate.
type State struct {
	mu        sync.RWMutex
	now       func() time.Time
	statusTTL time.Duration

	markets     map[string]MarketSnapshot
	marketOrder []string // first-seen ticker order, drives display order

	active map[string]protocol.RiskEvent
	legacy []protocol.RiskEvent

	lastRegime map[string]protocol.Regime
	clearedAt  map[string]time.Time

	watermark time.Time

	facts  ConnectionFacts
	status statusMessage
	search searchSlot

	available []protocol.AvailableMarket
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithStatusDuration overrides the default lifetime of transient status
// messages. Explicit per-message durations are unaffected.
func WithStatusDuration(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.statusTTL = d
		}
	}
}

// NewState creates an empty session state.
func NewState(opts ...Option) *State {
	s := &State{
		now:        time.Now,
		statusTTL:  DefaultStatusDuration,
		markets:    make(map[string]MarketSnapshot),
		active:     make(map[string]protocol.RiskEvent),
		lastRegime: make(map[string]protocol.Regime),
		clearedAt:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyMarket replaces the ticker's market view wholesale, recording a
// NO_QUOTE clearance at the instant of application when the regime leaves
// NO_QUOTE for SAFE or CAUTION.
func (s *State) ApplyMarket(u protocol.MarketUpdate) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.lastRegime[u.Ticker]
	if old == protocol.RegimeNoQuote &&
		(u.Regime == protocol.RegimeSafe || u.Regime == protocol.RegimeCaution) {
		s.clearedAt[u.Ticker] = now
	}
	s.lastRegime[u.Ticker] = u.Regime

	if _, seen := s.markets[u.Ticker]; !seen {
		s.marketOrder = append(s.marketOrder, u.Ticker)
	}
	s.markets[u.Ticker] = MarketSnapshot{
		Ticker:           u.Ticker,
		Bid:              u.Bid,
		Ask:              u.Ask,
		Mid:              u.Mid,
		Spread:           u.Spread,
		Depth:            u.Depth,
		Regime:           u.Regime,
		TriggerReasons:   u.TriggerReasons,
		CautionReasons:   u.CautionReasons,
		TimeToCloseS:     u.TimeToCloseS,
		TimeType:         u.TimeType,
		P99Move:          u.P99Move,
		PollLatencyMs:    u.PollLatencyMs,
		ComputeLatencyMs: u.ComputeLatencyMs,
		TimestampMs:      u.TimestampMs,
		ReceivedAt:       u.ReceivedAt,
	}

	s.facts.UpdatesReceived++
	if u.TimestampMs != 0 {
		s.facts.WSLatencyMs = float64(u.ReceivedAt.UnixMilli() - u.TimestampMs)
	}
}

// ApplyRiskEvent upserts a risk event wholesale. Events timestamped at or
// before the clear watermark are suppressed. Legacy (would_cancel) events go
// to the bounded fallback buffer instead of the active set. Returns whether
// the event was accepted.
func (s *State) ApplyRiskEvent(ev protocol.RiskEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An event without a usable timestamp cannot be ordered against the
	// watermark; drop it like any other undecodable input.
	if ev.T0Ms <= 0 {
		return false
	}
	if !ev.T0().After(s.watermark) {
		return false
	}

	if ev.Legacy || ev.EventID == "" {
		s.legacy = append(s.legacy, ev)
		if len(s.legacy) > LegacyEventCap {
			s.legacy = s.legacy[len(s.legacy)-LegacyEventCap:]
		}
		return true
	}

	s.active[ev.EventID] = ev
	return true
}

// CountDecodeDrop tallies an inbound frame the decoder refused.
func (s *State) CountDecodeDrop() {
	s.mu.Lock()
	s.facts.DecodeDrops++
	s.mu.Unlock()
}

// ApplyHeartbeat records server liveness.
func (s *State) ApplyHeartbeat(at time.Time) {
	s.mu.Lock()
	s.facts.LastHeartbeat = at
	s.mu.Unlock()
}

// RemoveMarket drops a ticker's market view (remove/expire acknowledgement).
// Regime history is kept: it is user-visible history, not subscription state.
func (s *State) RemoveMarket(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeMarketLocked(ticker)
}

func (s *State) removeMarketLocked(ticker string) {
	if _, ok := s.markets[ticker]; !ok {
		return
	}
	delete(s.markets, ticker)
	for i, t := range s.marketOrder {
		if t == ticker {
			s.marketOrder = append(s.marketOrder[:i], s.marketOrder[i+1:]...)
			break
		}
	}
}

// Clear advances the watermark to now and purges all held events, active and
// legacy, in one critical section. Nothing timestamped at or before the new
// watermark can reappear, even if retransmitted. The watermark never moves
// backwards.
func (s *State) Clear() time.Time {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.watermark) {
		s.watermark = now
	}
	s.active = make(map[string]protocol.RiskEvent)
	s.legacy = nil
	s.setStatusLocked("Events cleared", 0, now)

	return s.watermark
}

// Connected installs fresh connection facts and clears all market views.
// Ticker subscriptions are not durable across a session boundary, so stale
// market rows would be misleading; risk events, regime history, and the
// watermark survive a network blip.
func (s *State) Connected(serverURL string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.markets = make(map[string]MarketSnapshot)
	s.marketOrder = nil
	s.facts = ConnectionFacts{
		Connected:   true,
		SessionID:   uuid.NewString(),
		ServerURL:   serverURL,
		ConnectedAt: now,
	}
}

// Disconnected marks the session down.
func (s *State) Disconnected() {
	s.mu.Lock()
	s.facts.Connected = false
	s.mu.Unlock()
}

// SetStatus installs the transient status message. A zero duration means the
// configured default. At most one message is held; later messages replace
// earlier.
func (s *State) SetStatus(text string, ttl time.Duration) {
	now := s.now()
	s.mu.Lock()
	s.setStatusLocked(text, ttl, now)
	s.mu.Unlock()
}

func (s *State) setStatusLocked(text string, ttl time.Duration, now time.Time) {
	if ttl == 0 {
		ttl = s.statusTTL
	}
	s.status = statusMessage{text: text, setAt: now, ttl: ttl}
}

// BeginSearch resets the search-results slot and returns the generation
// token the caller must present to collect results.
func (s *State) BeginSearch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search.gen++
	s.search.results = nil
	s.search.filled = false
	return s.search.gen
}

// TakeSearchResults returns the results for the given generation, if they
// have arrived. Results from a superseded search are never returned.
func (s *State) TakeSearchResults(gen uint64) ([]protocol.SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.search.filled || s.search.gen != gen {
		return nil, false
	}
	return s.search.results, true
}

func (s *State) applySearchResults(results []protocol.SearchResult) {
	s.mu.Lock()
	s.search.results = results
	s.search.filled = true
	s.mu.Unlock()
}

func (s *State) applyAvailableList(markets []protocol.AvailableMarket) {
	s.mu.Lock()
	s.available = markets
	s.mu.Unlock()
}

// WatchedTickers returns the watched tickers in display order.
func (s *State) WatchedTickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.marketOrder))
	copy(out, s.marketOrder)
	return out
}

// Watermark returns the current clear watermark.
func (s *State) Watermark() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark
}

// ClearedAt returns the last NO_QUOTE clearance time for a ticker.
func (s *State) ClearedAt(ticker string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.clearedAt[ticker]
	return t, ok
}
