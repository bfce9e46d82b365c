package protocol

import "encoding/json"

// Wire types for JSON parsing. Two envelope shapes exist: data-carrying
// messages nest their payload under "data", control messages are flat.

// messageEnvelope is used for fast type extraction.
type messageEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// marketUpdateWire is the payload of a market_update message.
type marketUpdateWire struct {
	Ticker           string   `json:"ticker"`
	Bid              float64  `json:"bid"`
	Ask              float64  `json:"ask"`
	Mid              float64  `json:"mid"`
	Spread           float64  `json:"spread"`
	Depth            float64  `json:"depth"`
	Regime           string   `json:"regime"`
	TriggerReasons   []string `json:"trigger_reasons"`
	CautionReasons   []string `json:"caution_reasons"`
	TimeToCloseS     float64  `json:"time_to_close_s"`
	TimeType         string   `json:"time_type"`
	P99Move          float64  `json:"p99_move"`
	PollLatencyMs    float64  `json:"poll_latency_ms"`
	ComputeLatencyMs float64  `json:"compute_latency_ms"`
	TimestampMs      int64    `json:"timestamp_ms"`
}

// riskEventWire is the payload of event_update and would_cancel messages.
// t0_ts is the canonical trigger time; timestamp_ms is the legacy field.
type riskEventWire struct {
	EventID          string   `json:"event_id"`
	Ticker           string   `json:"ticker"`
	TriggerReasons   []string `json:"trigger_reasons"`
	T0Ts             int64    `json:"t0_ts"`
	TimestampMs      int64    `json:"timestamp_ms"`
	AdverseYes30s    float64  `json:"adverse_yes_30s"`
	AdverseNo30s     float64  `json:"adverse_no_30s"`
	AdverseYes2m     float64  `json:"adverse_yes_2m"`
	AdverseNo2m      float64  `json:"adverse_no_2m"`
	AdverseYes5m     float64  `json:"adverse_yes_5m"`
	AdverseNo5m      float64  `json:"adverse_no_5m"`
	TrackingComplete bool     `json:"tracking_complete"`
}

// tickerAckWire covers the flat single-ticker acknowledgements
// (ticker_added, ticker_removed, ticker_expired).
type tickerAckWire struct {
	Ticker string `json:"ticker"`
}

// tickersListWire is the flat tickers_list message.
type tickersListWire struct {
	Watched []string `json:"watched"`
}

// availableListWire is the flat available_list message. The markets field
// has two historical shapes: a list of ticker strings, or a list of records.
type availableListWire struct {
	Markets json.RawMessage `json:"markets"`
}

// availableMarketWire is one record of the newer available_list shape.
type availableMarketWire struct {
	Ticker   string `json:"ticker"`
	Subtitle string `json:"subtitle"`
}

// searchResultsWire is the flat search_results message. The newer shape
// fills contracts; the older shape fills tickers.
type searchResultsWire struct {
	Contracts []searchContractWire `json:"contracts"`
	Tickers   []string             `json:"tickers"`
}

// searchContractWire is one record of the newer search_results shape.
type searchContractWire struct {
	Ticker   string `json:"ticker"`
	Subtitle string `json:"subtitle"`
}

// serverErrorWire is the flat error message.
type serverErrorWire struct {
	Message string `json:"message"`
}
