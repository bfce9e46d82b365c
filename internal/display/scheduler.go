package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/takershield/observer/internal/session"
)

// Presenter paints one snapshot of the session.
type Presenter interface {
	Present(session.Snapshot)
}

// Scheduler drives the render loop at a fixed cadence, skipping ticks while
// a modal prompt owns the terminal.
type Scheduler struct {
	state     *session.State
	presenter Presenter
	mode      *Mode
	interval  time.Duration
	logger    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler. A zero interval means 250ms.
func NewScheduler(state *session.State, presenter Presenter, mode *Mode, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval == 0 {
		interval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		state:     state,
		presenter: presenter,
		mode:      mode,
		interval:  interval,
		logger:    logger.With("component", "display"),
	}
}

// Start launches the render loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info("render loop started", "interval", s.interval)
}

// Stop halts the render loop and waits for the in-flight frame.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.mode.ModalActive() {
				continue
			}
			s.presenter.Present(s.state.Snapshot())
		}
	}
}
