// Package journal persists accepted risk events to Postgres, write-only and
// best-effort. The dashboard never reads the journal back; it exists so risk
// events survive for offline analysis.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/takershield/observer/internal/config"
	"github.com/takershield/observer/internal/protocol"
)

// eventRow is the flattened shape written to the risk_events table.
type eventRow struct {
	ID             string
	EventID        string
	Ticker         string
	TriggerReasons []string
	T0Ms           int64
	AdverseYes30s  float64
	AdverseNo30s   float64
	AdverseYes2m   float64
	AdverseNo2m    float64
	AdverseYes5m   float64
	AdverseNo5m    float64
	Complete       bool
	Legacy         bool
	ReceivedAt     int64
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// Journal batches accepted risk events into Postgres.
type Journal struct {
	cfg    config.JournalConfig
	logger *slog.Logger

	db  *pgxpool.Pool
	buf *eventBuffer[eventRow]

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metricsMu sync.Mutex
	metrics   Metrics
}

// New creates a Journal writing to db.
func New(cfg config.JournalConfig, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "journal"),
		buf:    newEventBuffer[eventRow](cfg.BufferSize),
	}
}

// Record enqueues one accepted event. Never blocks; when the buffer is full
// the oldest pending row is dropped.
func (j *Journal) Record(ev protocol.RiskEvent) {
	j.buf.Push(eventRow{
		ID:             uuid.NewString(),
		EventID:        ev.EventID,
		Ticker:         ev.Ticker,
		TriggerReasons: ev.TriggerReasons,
		T0Ms:           ev.T0Ms,
		AdverseYes30s:  ev.AdverseYes30s,
		AdverseNo30s:   ev.AdverseNo30s,
		AdverseYes2m:   ev.AdverseYes2m,
		AdverseNo2m:    ev.AdverseNo2m,
		AdverseYes5m:   ev.AdverseYes5m,
		AdverseNo5m:    ev.AdverseNo5m,
		Complete:       ev.TrackingComplete,
		Legacy:         ev.Legacy,
		ReceivedAt:     ev.ReceivedAt.UnixMicro(),
	})
}

// Start begins the periodic flush loop.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining rows and shuts down.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping journal")

	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("journal stopped")
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	// Final flush, on the caller's context since ours is cancelled.
	j.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.metricsMu.Lock()
	defer j.metricsMu.Unlock()
	return j.metrics
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// flush drains pending rows and batch-inserts them.
func (j *Journal) flush(ctx context.Context) {
	for {
		rows := j.buf.DrainTo(j.cfg.BatchSize)
		if len(rows) == 0 {
			return
		}

		start := time.Now()
		if err := j.batchInsert(ctx, rows); err != nil {
			j.logger.Error("batch insert failed", "error", err, "count", len(rows))
			j.metricsMu.Lock()
			j.metrics.Errors++
			j.metricsMu.Unlock()
			return
		}

		j.metricsMu.Lock()
		j.metrics.Inserts += int64(len(rows))
		j.metrics.Flushes++
		j.metricsMu.Unlock()

		j.logger.Debug("flushed events",
			"count", len(rows),
			"duration", time.Since(start),
		)

		if len(rows) < j.cfg.BatchSize {
			return
		}
	}
}

// batchInsert writes rows using pgx.Batch. Duplicate upserts of the same
// event are expected; each write is its own row keyed by the generated id.
func (j *Journal) batchInsert(ctx context.Context, rows []eventRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO risk_events (id, event_id, ticker, trigger_reasons, t0_ms, adverse_yes_30s, adverse_no_30s, adverse_yes_2m, adverse_no_2m, adverse_yes_5m, adverse_no_5m, tracking_complete, legacy, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, r.ID, r.EventID, r.Ticker, r.TriggerReasons, r.T0Ms, r.AdverseYes30s, r.AdverseNo30s, r.AdverseYes2m, r.AdverseNo2m, r.AdverseYes5m, r.AdverseNo5m, r.Complete, r.Legacy, r.ReceivedAt)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
