// Package scheduler drives periodic re-evaluation of tracked symbols,
// so alerts fire even when no API traffic arrives.
package scheduler

import (
	"context"
	"time"

	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/orchestrator"
	"coinsight/pkg/logger"
)

// DefaultInterval between batch runs.
const DefaultInterval = time.Minute

// Scheduler runs the orchestrator batch path on a fixed interval.
type Scheduler struct {
	orch     *orchestrator.Orchestrator
	symbols  []string
	tf       domrepo.Timeframe
	interval time.Duration
	log      *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler for the given symbols on one timeframe.
// interval <= 0 uses the default.
func New(orch *orchestrator.Orchestrator, symbols []string, tf domrepo.Timeframe, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		orch:     orch,
		symbols:  symbols,
		tf:       tf,
		interval: interval,
		log:      log.With("component", "scheduler"),
	}
}

// Start launches the background loop. The first run happens after one
// full interval so startup backfill can settle.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
	s.log.Info("scheduler started",
		logger.Int("symbols", len(s.symbols)),
		logger.String("timeframe", string(s.tf)),
		logger.Duration("interval_ms", s.interval))
}

// Stop cancels the loop and waits for the in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	res := s.orch.ProcessBatch(ctx, s.symbols, s.tf)
	if len(res.Errors) > 0 {
		s.log.Warn("batch run had failures",
			logger.Int("ok", len(res.Results)),
			logger.Int("failed", len(res.Errors)),
			logger.Duration("duration_ms", time.Since(start)))
		return
	}
	s.log.Debug("batch run complete",
		logger.Int("ok", len(res.Results)),
		logger.Duration("duration_ms", time.Since(start)))
}
