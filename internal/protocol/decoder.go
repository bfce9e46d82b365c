// Package protocol decodes inbound frames from the brain server into typed
// events. Decoding never touches shared state: the Reconciler consumes the
// typed events. Unknown and malformed frames are counted and dropped.
package protocol

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Decode errors.
var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
)

// DecoderStats contains runtime statistics.
type DecoderStats struct {
	Received  int64
	Decoded   int64
	Malformed int64
	Unknown   int64
}

// Decoder parses raw frames into Events.
type Decoder struct {
	logger *slog.Logger

	mu    sync.Mutex
	stats DecoderStats
}

// NewDecoder creates a new Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Stats returns current statistics.
func (d *Decoder) Stats() DecoderStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Decode parses a single frame. A nil Event with a nil error means the frame
// was dropped (unknown type or malformed payload); drops are never fatal.
func (d *Decoder) Decode(data []byte, receivedAt time.Time) (Event, error) {
	d.count(func(s *DecoderStats) { s.Received++ })

	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.drop("malformed envelope", err)
		return nil, nil
	}

	ev, err := d.decodeTyped(env, data, receivedAt)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			d.mu.Lock()
			d.stats.Unknown++
			d.mu.Unlock()
			d.logger.Debug("skipping message type", "type", env.Type)
		} else {
			d.drop("malformed payload", err, "type", env.Type)
		}
		return nil, nil
	}

	d.count(func(s *DecoderStats) { s.Decoded++ })
	return ev, nil
}

func (d *Decoder) decodeTyped(env messageEnvelope, data []byte, receivedAt time.Time) (Event, error) {
	switch env.Type {
	case "market_update":
		return parseMarketUpdate(env.Data, receivedAt)
	case "event_update":
		return parseRiskEvent(env.Data, receivedAt, false)
	case "would_cancel":
		return parseRiskEvent(env.Data, receivedAt, true)
	case "heartbeat":
		return Heartbeat{ReceivedAt: receivedAt}, nil
	case "ticker_added":
		var wire tickerAckWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return TickerAdded{Ticker: wire.Ticker}, nil
	case "ticker_removed":
		var wire tickerAckWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return TickerRemoved{Ticker: wire.Ticker}, nil
	case "ticker_expired":
		var wire tickerAckWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return TickerExpired{Ticker: wire.Ticker}, nil
	case "tickers_list":
		var wire tickersListWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return TickersList{Watched: wire.Watched}, nil
	case "available_list":
		return parseAvailableList(data)
	case "search_results":
		return parseSearchResults(data)
	case "error":
		var wire serverErrorWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		if wire.Message == "" {
			wire.Message = "Unknown error"
		}
		return ServerError{Message: wire.Message}, nil
	default:
		return nil, ErrUnknownType
	}
}

func parseMarketUpdate(payload []byte, receivedAt time.Time) (Event, error) {
	var wire marketUpdateWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	if wire.Ticker == "" {
		return nil, ErrMalformed
	}

	return MarketUpdate{
		Ticker:           wire.Ticker,
		Bid:              int(wire.Bid),
		Ask:              int(wire.Ask),
		Mid:              wire.Mid,
		Spread:           int(wire.Spread),
		Depth:            int(wire.Depth),
		Regime:           Regime(wire.Regime),
		TriggerReasons:   wire.TriggerReasons,
		CautionReasons:   wire.CautionReasons,
		TimeToCloseS:     wire.TimeToCloseS,
		TimeType:         wire.TimeType,
		P99Move:          wire.P99Move,
		PollLatencyMs:    wire.PollLatencyMs,
		ComputeLatencyMs: wire.ComputeLatencyMs,
		TimestampMs:      wire.TimestampMs,
		ReceivedAt:       receivedAt,
	}, nil
}

func parseRiskEvent(payload []byte, receivedAt time.Time, legacy bool) (Event, error) {
	var wire riskEventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	if !legacy && wire.EventID == "" {
		return nil, ErrMalformed
	}

	// Canonical trigger time wins; legacy frames only carry timestamp_ms.
	t0 := wire.T0Ts
	if t0 == 0 {
		t0 = wire.TimestampMs
	}

	return RiskEvent{
		EventID:          wire.EventID,
		Ticker:           wire.Ticker,
		TriggerReasons:   wire.TriggerReasons,
		T0Ms:             t0,
		AdverseYes30s:    wire.AdverseYes30s,
		AdverseNo30s:     wire.AdverseNo30s,
		AdverseYes2m:     wire.AdverseYes2m,
		AdverseNo2m:      wire.AdverseNo2m,
		AdverseYes5m:     wire.AdverseYes5m,
		AdverseNo5m:      wire.AdverseNo5m,
		TrackingComplete: wire.TrackingComplete,
		Legacy:           legacy,
		ReceivedAt:       receivedAt,
	}, nil
}

// parseAvailableList handles both historical shapes of the markets field:
// ["T1", "T2"] and [{"ticker": "T1", "subtitle": "..."}].
func parseAvailableList(data []byte) (Event, error) {
	var wire availableListWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	if len(wire.Markets) == 0 {
		return AvailableList{}, nil
	}

	var records []availableMarketWire
	if err := json.Unmarshal(wire.Markets, &records); err == nil {
		markets := make([]AvailableMarket, 0, len(records))
		for _, r := range records {
			markets = append(markets, AvailableMarket{Ticker: r.Ticker, Subtitle: r.Subtitle})
		}
		return AvailableList{Markets: markets}, nil
	}

	var tickers []string
	if err := json.Unmarshal(wire.Markets, &tickers); err != nil {
		return nil, err
	}
	markets := make([]AvailableMarket, 0, len(tickers))
	for _, t := range tickers {
		markets = append(markets, AvailableMarket{Ticker: t})
	}
	return AvailableList{Markets: markets}, nil
}

// parseSearchResults handles both historical shapes: the newer contracts
// list with subtitles, and the older bare tickers list.
func parseSearchResults(data []byte) (Event, error) {
	var wire searchResultsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	if len(wire.Contracts) > 0 {
		results := make([]SearchResult, 0, len(wire.Contracts))
		for _, c := range wire.Contracts {
			results = append(results, SearchResult{Ticker: c.Ticker, Subtitle: c.Subtitle})
		}
		return SearchResults{Results: results}, nil
	}

	results := make([]SearchResult, 0, len(wire.Tickers))
	for _, t := range wire.Tickers {
		results = append(results, SearchResult{Ticker: t})
	}
	return SearchResults{Results: results}, nil
}

func (d *Decoder) count(f func(*DecoderStats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

func (d *Decoder) drop(msg string, err error, args ...any) {
	d.mu.Lock()
	d.stats.Malformed++
	d.mu.Unlock()
	d.logger.Warn(msg, append([]any{"error", err}, args...)...)
}
