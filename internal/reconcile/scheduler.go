package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
)

// runTimeout bounds a single reconciliation pass.
const runTimeout = 30 * time.Second

// Reconciler is implemented by the ledger service.
type Reconciler interface {
	Reconcile(ctx context.Context) (ledger.Reconciliation, error)
}

// Scheduler periodically checks the stored balance against the transaction
// history and logs any drift.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	logger     *slog.Logger
	enabled    bool

	mu   sync.Mutex
	last *ledger.Reconciliation
}

// New creates a scheduler for the given cron spec. An empty spec yields a
// disabled scheduler whose Start and Stop are no-ops.
func New(reconciler Reconciler, spec string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		reconciler: reconciler,
		logger:     logging.OrDiscard(logger),
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	s.enabled = true
	return s, nil
}

// Enabled reports whether a schedule was registered.
func (s *Scheduler) Enabled() bool {
	return s.enabled
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	if !s.enabled {
		s.logger.Info("reconciliation disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started")
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if !s.enabled {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("reconciliation scheduler stopped")
}

// Last returns the result of the most recent successful pass.
func (s *Scheduler) Last() (ledger.Reconciliation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ledger.Reconciliation{}, false
	}
	return *s.last, true
}

// RunOnce performs a single reconciliation pass and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (ledger.Reconciliation, error) {
	r, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("reconciliation failed", slog.String("error", err.Error()))
		return ledger.Reconciliation{}, err
	}

	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()

	attrs := []any{
		slog.String("balance", r.Balance.String()),
		slog.String("expected", r.Expected.String()),
		slog.Int("settled", r.Settled),
		slog.Int("pending", r.Pending),
	}
	if r.Balanced() {
		s.logger.Debug("ledger balanced", attrs...)
	} else {
		s.logger.Warn("ledger drift detected", append(attrs, slog.String("difference", r.Difference.String()))...)
	}
	return r, nil
}

func (s *Scheduler) run() {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("reconciliation panicked", slog.Any("panic", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}
