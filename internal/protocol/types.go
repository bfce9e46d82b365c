package protocol

import "time"

// Regime is the discrete risk classification of a market.
type Regime string

const (
	RegimeSafe    Regime = "SAFE"
	RegimeCaution Regime = "CAUTION"
	RegimeNoQuote Regime = "NO_QUOTE"
)

// Event is a decoded inbound message. Exactly the types below implement it.
type Event interface {
	event()
}

// MarketUpdate replaces the full per-ticker market view.
type MarketUpdate struct {
	Ticker           string
	Bid              int
	Ask              int
	Mid              float64
	Spread           int
	Depth            int
	Regime           Regime
	TriggerReasons   []string // set for NO_QUOTE
	CautionReasons   []string // set for CAUTION
	TimeToCloseS     float64
	TimeType         string // "closes" or "closed"
	P99Move          float64
	PollLatencyMs    float64
	ComputeLatencyMs float64
	TimestampMs      int64 // server send time, ms since epoch
	ReceivedAt       time.Time
}

// RiskEvent is the normalized shape for both event_update and would_cancel
// frames. T0Ms prefers the canonical t0_ts field and falls back to the
// message-level timestamp_ms. Legacy frames carry no EventID.
type RiskEvent struct {
	EventID        string
	Ticker         string
	TriggerReasons []string
	T0Ms           int64

	// Adverse moves in cents vs mid at t0, per horizon.
	// Yes = price dropped (YES quoter loses), No = price rose.
	AdverseYes30s float64
	AdverseNo30s  float64
	AdverseYes2m  float64
	AdverseNo2m   float64
	AdverseYes5m  float64
	AdverseNo5m   float64

	TrackingComplete bool
	Legacy           bool // normalized from a would_cancel frame
	ReceivedAt       time.Time
}

// T0 returns the trigger time as a wall-clock instant.
func (e RiskEvent) T0() time.Time {
	return time.UnixMilli(e.T0Ms)
}

// Heartbeat is a server liveness signal.
type Heartbeat struct {
	ReceivedAt time.Time
}

// TickerAdded acknowledges an add_ticker command.
type TickerAdded struct {
	Ticker string
}

// TickerRemoved acknowledges a remove_ticker command.
type TickerRemoved struct {
	Ticker string
}

// TickerExpired reports a server-side expiry of a watched ticker.
type TickerExpired struct {
	Ticker string
}

// TickersList reports the currently watched tickers.
type TickersList struct {
	Watched []string
}

// AvailableMarket is one entry of an available-market listing, normalized
// from either historical payload shape.
type AvailableMarket struct {
	Ticker   string
	Subtitle string
}

// AvailableList reports browseable markets.
type AvailableList struct {
	Markets []AvailableMarket
}

// SearchResult is one entry of a search response, normalized from either
// historical payload shape.
type SearchResult struct {
	Ticker   string
	Subtitle string
}

// SearchResults reports the outcome of a search_ticker command.
type SearchResults struct {
	Results []SearchResult
}

// ServerError is an explicit error message from the server.
type ServerError struct {
	Message string
}

func (MarketUpdate) event()  {}
func (RiskEvent) event()     {}
func (Heartbeat) event()     {}
func (TickerAdded) event()   {}
func (TickerRemoved) event() {}
func (TickerExpired) event() {}
func (TickersList) event()   {}
func (AvailableList) event() {}
func (SearchResults) event() {}
func (ServerError) event()   {}
