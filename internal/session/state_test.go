package session

import (
	"testing"
	"time"

	"github.com/takershield/observer/internal/protocol"
)

// fakeClock is a settable clock for driving State in tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestState() (*State, *fakeClock) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	return NewState(WithClock(clock.Now)), clock
}

func marketUpdate(ticker string, regime protocol.Regime) protocol.MarketUpdate {
	return protocol.MarketUpdate{
		Ticker: ticker,
		Bid:    40,
		Ask:    44,
		Mid:    42,
		Regime: regime,
	}
}

func riskEvent(id, ticker string, t0 time.Time) protocol.RiskEvent {
	return protocol.RiskEvent{
		EventID: id,
		Ticker:  ticker,
		T0Ms:    t0.UnixMilli(),
	}
}

func TestApplyMarketReplacesWholesale(t *testing.T) {
	s, _ := newTestState()

	first := marketUpdate("T1", protocol.RegimeSafe)
	first.TriggerReasons = []string{"spread_blowout"}
	first.P99Move = 3.5
	s.ApplyMarket(first)

	// Second update omits fields; they must not survive from the first.
	second := protocol.MarketUpdate{Ticker: "T1", Bid: 50, Regime: protocol.RegimeCaution}
	s.ApplyMarket(second)

	snap := s.Snapshot()
	if len(snap.Markets) != 1 {
		t.Fatalf("len(Markets) = %d, want 1", len(snap.Markets))
	}
	m := snap.Markets[0]
	if m.Bid != 50 {
		t.Errorf("Bid = %d, want 50", m.Bid)
	}
	if m.P99Move != 0 {
		t.Errorf("P99Move = %v, want 0 (stale field survived replace)", m.P99Move)
	}
	if len(m.TriggerReasons) != 0 {
		t.Errorf("TriggerReasons = %v, want empty", m.TriggerReasons)
	}
}

func TestApplyMarketFirstSeenOrder(t *testing.T) {
	s, _ := newTestState()

	s.ApplyMarket(marketUpdate("B", protocol.RegimeSafe))
	s.ApplyMarket(marketUpdate("A", protocol.RegimeSafe))
	s.ApplyMarket(marketUpdate("B", protocol.RegimeCaution)) // re-update must not reorder

	snap := s.Snapshot()
	if len(snap.Markets) != 2 {
		t.Fatalf("len(Markets) = %d, want 2", len(snap.Markets))
	}
	if snap.Markets[0].Ticker != "B" || snap.Markets[1].Ticker != "A" {
		t.Errorf("order = [%s %s], want [B A]", snap.Markets[0].Ticker, snap.Markets[1].Ticker)
	}
}

func TestRegimeClearanceRecordedAtApplication(t *testing.T) {
	s, clock := newTestState()

	s.ApplyMarket(marketUpdate("T1", protocol.RegimeNoQuote))
	clock.Advance(8 * time.Second)
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeSafe))

	at, ok := s.ClearedAt("T1")
	if !ok {
		t.Fatal("no clearance recorded for NO_QUOTE -> SAFE")
	}
	if !at.Equal(clock.Now()) {
		t.Errorf("clearedAt = %v, want application instant %v", at, clock.Now())
	}
}

func TestRegimeClearanceOnlyFromNoQuote(t *testing.T) {
	s, _ := newTestState()

	// SAFE -> CAUTION -> SAFE never records a clearance.
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeSafe))
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeCaution))
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeSafe))

	if _, ok := s.ClearedAt("T1"); ok {
		t.Error("clearance recorded without leaving NO_QUOTE")
	}

	// NO_QUOTE -> NO_QUOTE is not a clearance either.
	s.ApplyMarket(marketUpdate("T2", protocol.RegimeNoQuote))
	s.ApplyMarket(marketUpdate("T2", protocol.RegimeNoQuote))
	if _, ok := s.ClearedAt("T2"); ok {
		t.Error("clearance recorded for NO_QUOTE -> NO_QUOTE")
	}
}

func TestApplyRiskEventUpsert(t *testing.T) {
	s, clock := newTestState()

	t0 := clock.Now()
	ev := riskEvent("e1", "T1", t0)
	ev.AdverseYes30s = 2
	if !s.ApplyRiskEvent(ev) {
		t.Fatal("event rejected")
	}

	// Same id again with updated tracking replaces, never duplicates.
	ev.AdverseYes30s = 6
	ev.TrackingComplete = true
	if !s.ApplyRiskEvent(ev) {
		t.Fatal("upsert rejected")
	}

	snap := s.Snapshot()
	if len(snap.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(snap.Events))
	}
	if snap.Events[0].AdverseYes30s != 6 {
		t.Errorf("AdverseYes30s = %v, want 6 (upsert did not replace)", snap.Events[0].AdverseYes30s)
	}
	if !snap.Events[0].TrackingComplete {
		t.Error("TrackingComplete lost in upsert")
	}
}

func TestLegacyEventsBufferedFIFO(t *testing.T) {
	s, clock := newTestState()

	for i := 0; i < LegacyEventCap+5; i++ {
		ev := protocol.RiskEvent{
			Ticker: "T1",
			T0Ms:   clock.Now().UnixMilli() + int64(i),
			Legacy: true,
		}
		if !s.ApplyRiskEvent(ev) {
			t.Fatalf("legacy event %d rejected", i)
		}
	}

	snap := s.Snapshot()
	// Only the newest few surface; the full buffer still backs the cancel
	// aggregate.
	if len(snap.LegacyEvents) != LegacyVisible {
		t.Fatalf("len(LegacyEvents) = %d, want %d", len(snap.LegacyEvents), LegacyVisible)
	}
	wantNewest := clock.Now().UnixMilli() + int64(LegacyEventCap+4)
	if got := snap.LegacyEvents[0].T0Ms; got != wantNewest {
		t.Errorf("newest shown T0Ms = %d, want %d", got, wantNewest)
	}
	wantOldest := wantNewest - int64(LegacyVisible-1)
	if got := snap.LegacyEvents[len(snap.LegacyEvents)-1].T0Ms; got != wantOldest {
		t.Errorf("oldest shown T0Ms = %d, want %d", got, wantOldest)
	}
	if snap.CancelCount != LegacyEventCap {
		t.Errorf("CancelCount = %d, want %d", snap.CancelCount, LegacyEventCap)
	}
}

func TestRiskEventWithoutTimestampRejected(t *testing.T) {
	s, _ := newTestState()

	if s.ApplyRiskEvent(protocol.RiskEvent{Ticker: "T1", Legacy: true}) {
		t.Error("timestamp-less legacy event accepted")
	}
	if s.ApplyRiskEvent(protocol.RiskEvent{EventID: "e1", Ticker: "T1"}) {
		t.Error("timestamp-less active event accepted")
	}

	snap := s.Snapshot()
	if len(snap.Events) != 0 || len(snap.LegacyEvents) != 0 {
		t.Errorf("held events = %d active, %d legacy, want none",
			len(snap.Events), len(snap.LegacyEvents))
	}
}

func TestLegacyFallbackHiddenWhenActiveEventsExist(t *testing.T) {
	s, clock := newTestState()

	legacy := protocol.RiskEvent{Ticker: "T1", T0Ms: clock.Now().UnixMilli(), Legacy: true}
	s.ApplyRiskEvent(legacy)
	s.ApplyRiskEvent(riskEvent("e1", "T1", clock.Now()))

	snap := s.Snapshot()
	if len(snap.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(snap.Events))
	}
	if len(snap.LegacyEvents) != 0 {
		t.Errorf("LegacyEvents shown alongside active events: %d", len(snap.LegacyEvents))
	}
}

func TestClearSuppressesRetransmission(t *testing.T) {
	s, clock := newTestState()

	before := clock.Now()
	s.ApplyRiskEvent(riskEvent("e1", "T1", before))
	clock.Advance(time.Second)

	s.Clear()

	// Retransmission of the purged event must stay suppressed.
	if s.ApplyRiskEvent(riskEvent("e1", "T1", before)) {
		t.Error("retransmitted pre-clear event accepted")
	}
	// An event timestamped exactly at the watermark is suppressed too.
	if s.ApplyRiskEvent(riskEvent("e2", "T1", s.Watermark())) {
		t.Error("event at watermark accepted, boundary is inclusive")
	}
	// Newer events pass.
	clock.Advance(time.Second)
	if !s.ApplyRiskEvent(riskEvent("e3", "T1", clock.Now())) {
		t.Error("post-clear event rejected")
	}

	snap := s.Snapshot()
	if len(snap.Events) != 1 || snap.Events[0].EventID != "e3" {
		t.Errorf("Events = %+v, want only e3", snap.Events)
	}
}

func TestClearPurgesLegacyToo(t *testing.T) {
	s, clock := newTestState()

	s.ApplyRiskEvent(protocol.RiskEvent{Ticker: "T1", T0Ms: clock.Now().UnixMilli(), Legacy: true})
	s.Clear()

	snap := s.Snapshot()
	if len(snap.LegacyEvents) != 0 {
		t.Errorf("LegacyEvents = %d after clear, want 0", len(snap.LegacyEvents))
	}
	if snap.Status != "Events cleared" {
		t.Errorf("Status = %q, want %q", snap.Status, "Events cleared")
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	s, clock := newTestState()

	clock.Advance(10 * time.Second)
	first := s.Clear()

	// Clock regression must not move the watermark backwards.
	clock.now = clock.now.Add(-5 * time.Second)
	second := s.Clear()

	if second.Before(first) {
		t.Errorf("watermark moved backwards: %v -> %v", first, second)
	}
	if !second.Equal(first) {
		t.Errorf("watermark = %v, want unchanged %v", second, first)
	}
}

func TestConnectedResetsMarketsKeepsHistory(t *testing.T) {
	s, clock := newTestState()

	s.Connected("wss://a")
	firstSession := s.Snapshot().Facts.SessionID

	s.ApplyMarket(marketUpdate("T1", protocol.RegimeNoQuote))
	clock.Advance(2 * time.Second)
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeSafe))
	s.ApplyRiskEvent(riskEvent("e1", "T1", clock.Now()))
	s.Clear()

	s.Disconnected()
	clock.Advance(5 * time.Second)
	s.Connected("wss://a")

	snap := s.Snapshot()
	if len(snap.Markets) != 0 {
		t.Errorf("Markets = %d after reconnect, want 0", len(snap.Markets))
	}
	if snap.Facts.SessionID == firstSession {
		t.Error("SessionID not regenerated on reconnect")
	}
	if !snap.Facts.Connected {
		t.Error("Facts.Connected = false after Connected()")
	}
	if snap.Facts.UpdatesReceived != 0 {
		t.Errorf("UpdatesReceived = %d, want 0 in fresh facts", snap.Facts.UpdatesReceived)
	}
	// Regime history and watermark survive the reconnect.
	if _, ok := s.ClearedAt("T1"); !ok {
		t.Error("regime history lost on reconnect")
	}
	if s.Watermark().IsZero() {
		t.Error("watermark lost on reconnect")
	}
}

func TestWSLatencySignedStorage(t *testing.T) {
	s, clock := newTestState()

	// Server timestamp ahead of local receipt: skew makes latency negative.
	u := marketUpdate("T1", protocol.RegimeSafe)
	u.TimestampMs = clock.Now().UnixMilli() + 40
	u.ReceivedAt = clock.Now()
	s.ApplyMarket(u)

	got := s.Snapshot().Facts.WSLatencyMs
	if got != -40 {
		t.Errorf("WSLatencyMs = %v, want -40 (raw signed value)", got)
	}
}

func TestRemoveMarket(t *testing.T) {
	s, clock := newTestState()

	s.ApplyMarket(marketUpdate("T1", protocol.RegimeNoQuote))
	clock.Advance(time.Second)
	s.ApplyMarket(marketUpdate("T1", protocol.RegimeSafe))
	s.ApplyMarket(marketUpdate("T2", protocol.RegimeSafe))

	s.RemoveMarket("T1")
	s.RemoveMarket("missing") // no-op

	snap := s.Snapshot()
	if len(snap.Markets) != 1 || snap.Markets[0].Ticker != "T2" {
		t.Errorf("Markets = %+v, want only T2", snap.Markets)
	}
	// Removal keeps regime history: it is user-visible history.
	if _, ok := s.ClearedAt("T1"); !ok {
		t.Error("regime history dropped on RemoveMarket")
	}
}

func TestStatusReplaceAndExpiry(t *testing.T) {
	s, clock := newTestState()

	s.SetStatus("first", 0)
	s.SetStatus("second", 0) // replaces, at most one message held

	if got := s.Snapshot().Status; got != "second" {
		t.Errorf("Status = %q, want %q", got, "second")
	}

	clock.Advance(DefaultStatusDuration + time.Millisecond)
	if got := s.Snapshot().Status; got != "" {
		t.Errorf("Status = %q after expiry, want empty", got)
	}

	// Longer-lived error status.
	s.SetStatus("server error", 10*time.Second)
	clock.Advance(7 * time.Second)
	if got := s.Snapshot().Status; got != "server error" {
		t.Errorf("Status = %q at 7s of 10s ttl, want kept", got)
	}
}

func TestStatusDurationConfigurable(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s := NewState(WithClock(clock.Now), WithStatusDuration(2*time.Second))

	s.SetStatus("added", 0)
	clock.Advance(time.Second)
	if got := s.Snapshot().Status; got != "added" {
		t.Errorf("Status = %q at 1s of 2s ttl, want kept", got)
	}
	clock.Advance(1500 * time.Millisecond)
	if got := s.Snapshot().Status; got != "" {
		t.Errorf("Status = %q past 2s ttl, want expired", got)
	}

	// Explicit durations bypass the configured default.
	s.SetStatus("server error", 10*time.Second)
	clock.Advance(5 * time.Second)
	if got := s.Snapshot().Status; got != "server error" {
		t.Errorf("Status = %q at 5s of explicit 10s ttl, want kept", got)
	}
}

func TestSearchGenerations(t *testing.T) {
	s, _ := newTestState()

	gen1 := s.BeginSearch()
	gen2 := s.BeginSearch() // supersedes gen1

	s.applySearchResults([]protocol.SearchResult{{Ticker: "A"}})

	if _, ok := s.TakeSearchResults(gen1); ok {
		t.Error("superseded search returned results")
	}
	results, ok := s.TakeSearchResults(gen2)
	if !ok {
		t.Fatal("current search returned no results")
	}
	if len(results) != 1 || results[0].Ticker != "A" {
		t.Errorf("results = %+v, want [A]", results)
	}
}

func TestSearchEmptyResultsStillFill(t *testing.T) {
	s, _ := newTestState()

	gen := s.BeginSearch()
	s.applySearchResults(nil)

	results, ok := s.TakeSearchResults(gen)
	if !ok {
		t.Fatal("empty search results should still fill the slot")
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestWatchedTickers(t *testing.T) {
	s, _ := newTestState()

	s.ApplyMarket(marketUpdate("B", protocol.RegimeSafe))
	s.ApplyMarket(marketUpdate("A", protocol.RegimeSafe))

	got := s.WatchedTickers()
	if len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("WatchedTickers() = %v, want [B A]", got)
	}
}
