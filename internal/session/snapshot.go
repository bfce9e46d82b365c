package session

import (
	"math"
	"sort"
	"time"

	"github.com/takershield/observer/internal/protocol"
)

// ShieldState classifies the shielded-duration derivation for an event.
type ShieldState int

const (
	// ShieldUnknown: no clearance postdating the event is on record.
	ShieldUnknown ShieldState = iota
	// ShieldOngoing: the event's ticker is still in NO_QUOTE.
	ShieldOngoing
	// ShieldCleared: the ticker left NO_QUOTE after the event triggered.
	ShieldCleared
)

// VisibleEvent is a risk event together with its read-time derived facts.
type VisibleEvent struct {
	protocol.RiskEvent

	Age         time.Duration
	Shield      ShieldState
	ShieldedFor time.Duration // valid when Shield == ShieldCleared

	// RecentlyCleared marks a clearance within the last 5s, for the
	// transient "cleared" flash on the market row.
	RecentlyCleared bool
}

// Snapshot is an immutable view of the session handed to the render and
// command paths. All derivations are recomputed here, never stored.
type Snapshot struct {
	Now time.Time

	Markets   []MarketSnapshot
	ClearedAt map[string]time.Time

	// Events is the visible active set, newest first, capped at
	// MaxVisibleEvents. LegacyEvents is the would-cancel fallback, newest
	// first, at most LegacyVisible entries, populated only when Events is
	// empty.
	Events       []VisibleEvent
	LegacyEvents []protocol.RiskEvent

	// CancelCount and AvoidedCents aggregate over everything held, not just
	// what is visible: the count of active plus legacy events, and the
	// summed worst 5m adverse move across the active set.
	CancelCount  int
	AvoidedCents float64

	Facts ConnectionFacts
	// Stale is true when the last heartbeat is older than StaleAfter.
	// Derived per snapshot, distinct from Facts.Connected.
	Stale bool

	Status string
}

// Snapshot takes a consistent read-only copy of the session state.
func (s *State) Snapshot() Snapshot {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Now:       now,
		Facts:     s.facts,
		ClearedAt: make(map[string]time.Time, len(s.clearedAt)),
	}

	for t, at := range s.clearedAt {
		snap.ClearedAt[t] = at
	}

	snap.Markets = make([]MarketSnapshot, 0, len(s.markets))
	for _, ticker := range s.marketOrder {
		if m, ok := s.markets[ticker]; ok {
			snap.Markets = append(snap.Markets, m)
		}
	}

	snap.Events = s.visibleEventsLocked(now)
	if len(snap.Events) == 0 && len(s.legacy) > 0 {
		n := len(s.legacy)
		if n > LegacyVisible {
			n = LegacyVisible
		}
		snap.LegacyEvents = make([]protocol.RiskEvent, 0, n)
		for i := len(s.legacy) - 1; i >= len(s.legacy)-n; i-- {
			snap.LegacyEvents = append(snap.LegacyEvents, s.legacy[i])
		}
	}

	snap.CancelCount = len(s.active) + len(s.legacy)
	for _, ev := range s.active {
		snap.AvoidedCents += math.Max(ev.AdverseYes5m, ev.AdverseNo5m)
	}

	if !s.facts.LastHeartbeat.IsZero() && now.Sub(s.facts.LastHeartbeat) > StaleAfter {
		snap.Stale = true
	}

	if s.status.text != "" && now.Sub(s.status.setAt) < s.status.ttl {
		snap.Status = s.status.text
	}

	return snap
}

// visibleEventsLocked applies the visibility filter and derivations:
// an event is visible unless tracking completed and t0 is more than the
// visibility horizon ago; visible events are ordered t0 descending and
// truncated to MaxVisibleEvents.
func (s *State) visibleEventsLocked(now time.Time) []VisibleEvent {
	visible := make([]VisibleEvent, 0, len(s.active))
	for _, ev := range s.active {
		age := now.Sub(ev.T0())
		if ev.TrackingComplete && age > VisibilityHorizon {
			continue
		}
		visible = append(visible, s.deriveLocked(ev, age, now))
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].T0Ms > visible[j].T0Ms
	})
	if len(visible) > MaxVisibleEvents {
		visible = visible[:MaxVisibleEvents]
	}
	return visible
}

// deriveLocked computes the shielded-duration facts for one event. The
// derived duration is never zero or negative: a clearance at or before t0
// reports unknown.
func (s *State) deriveLocked(ev protocol.RiskEvent, age time.Duration, now time.Time) VisibleEvent {
	ve := VisibleEvent{RiskEvent: ev, Age: age}

	clearedAt, cleared := s.clearedAt[ev.Ticker]
	switch {
	case s.lastRegime[ev.Ticker] == protocol.RegimeNoQuote:
		ve.Shield = ShieldOngoing
	case cleared && clearedAt.After(ev.T0()):
		ve.Shield = ShieldCleared
		ve.ShieldedFor = clearedAt.Sub(ev.T0())
	default:
		ve.Shield = ShieldUnknown
	}

	if cleared && now.Sub(clearedAt) < 5*time.Second {
		ve.RecentlyCleared = true
	}

	return ve
}
