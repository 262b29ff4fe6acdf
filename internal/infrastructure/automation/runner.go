package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/infrastructure/metrics"
	"github.com/quorvia/erpcore/internal/usecase"
)

// Runner drives the automation engine: it fires due cron jobs, admits
// queued executions within each workflow's concurrency limit and runs
// them on a bounded worker pool.
type Runner struct {
	uc           *usecase.AutomationUseCase
	logger       *slog.Logger
	metrics      *metrics.Metrics
	retrier      usecase.Retrier
	interval     time.Duration
	workers      int
	retryBackoff time.Duration
}

// Config for Runner.
type Config struct {
	UseCase      *usecase.AutomationUseCase
	Logger       *slog.Logger
	Metrics      *metrics.Metrics // Optional job counters
	Retrier      usecase.Retrier  // Optional retry on transient database errors
	Interval     time.Duration    // Polling interval
	Workers      int              // Max concurrent executions
	RetryBackoff time.Duration    // Base delay before requeueing a retry
}

// NewRunner creates a new Runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Interval == 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		uc:           cfg.UseCase,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		retrier:      cfg.Retrier,
		interval:     cfg.Interval,
		workers:      cfg.Workers,
		retryBackoff: cfg.RetryBackoff,
	}
}

// Start polls until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("automation runner started",
		slog.Duration("interval", r.interval),
		slog.Int("workers", r.workers))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("automation runner shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick fires due jobs and drains every workflow's admission queue.
func (r *Runner) tick(ctx context.Context) {
	if fired, err := r.uc.FireDueJobs(ctx, time.Now().UTC()); err != nil {
		r.logger.Error("firing due jobs failed", slog.String("error", err.Error()))
	} else if fired > 0 {
		r.logger.Info("fired scheduled jobs", slog.Int("count", fired))
		if r.metrics != nil {
			r.metrics.JobsFired.Add(float64(fired))
		}
	}

	workflowIDs, err := r.uc.PendingWorkflows(ctx)
	if err != nil {
		r.logger.Error("listing pending workflows failed", slog.String("error", err.Error()))
		return
	}

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, wfID := range workflowIDs {
		for {
			exec, err := r.uc.AdmitNext(ctx, wfID)
			if err != nil {
				r.logger.Error("admission failed",
					slog.String("workflow_id", wfID),
					slog.String("error", err.Error()))
				break
			}
			if exec == nil {
				break
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(executionID string) {
				defer wg.Done()
				defer func() { <-sem }()
				r.runExecution(ctx, executionID)
			}(exec.ID)
		}
	}
	wg.Wait()
}

// runExecution runs one admitted execution and requeues it after a
// backoff when the engine marks it retrying.
func (r *Runner) runExecution(ctx context.Context, executionID string) {
	var exec *domain.WorkflowExecution
	run := func() error {
		var err error
		exec, err = r.uc.Run(ctx, executionID)
		return err
	}
	var err error
	if r.retrier != nil {
		err = r.retrier.Retry(ctx, run)
	} else {
		err = run()
	}
	if err != nil {
		r.logger.Error("execution run failed",
			slog.String("execution_id", executionID),
			slog.String("error", err.Error()))
		return
	}

	r.logger.Info("execution finished",
		slog.String("execution_id", exec.ID),
		slog.String("status", string(exec.Status)))

	if exec.Status != domain.ExecutionRetrying {
		return
	}

	delay := r.retryBackoff * time.Duration(exec.RetryCount)
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if err := r.uc.Requeue(ctx, exec.ID); err != nil {
		r.logger.Error("requeue failed",
			slog.String("execution_id", exec.ID),
			slog.String("error", err.Error()))
	}
}
