package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	defaultConcurrency = 4
	shutdownTimeout    = 30 * time.Second
)

// WorkerConfig collects the dependencies of the background worker.
type WorkerConfig struct {
	Redis       asynq.RedisConnOpt
	Logger      *slog.Logger
	Concurrency int
	Integrity   *LedgerIntegrityJob
	// IntegrityCron schedules the audit; empty disables scheduling.
	IntegrityCron string
	// Prune is optional; PruneCron schedules it.
	Prune     *IdempotencyPruneJob
	PruneCron string
}

// Worker processes ledger tasks and, when configured, schedules the periodic
// integrity audit.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds the asynq server, registers the ledger handlers and
// validates the cron schedule.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Redis == nil {
		return nil, errors.New("worker: redis connection required")
	}
	if cfg.Integrity == nil {
		return nil, errors.New("worker: integrity job required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	w := &Worker{mux: asynq.NewServeMux(), logger: logger}
	w.server = asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		Logger:          slogAdapter{logger: logger.With(slog.String("component", "asynq"))},
		ErrorHandler:    asynq.ErrorHandlerFunc(w.taskFailed),
		ShutdownTimeout: shutdownTimeout,
	})
	w.mux.HandleFunc(TaskLedgerIntegrity, cfg.Integrity.Handle)
	if cfg.Prune != nil {
		w.mux.HandleFunc(TaskIdempotencyPrune, cfg.Prune.Handle)
	}

	var schedules []schedule
	if cfg.IntegrityCron != "" {
		task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{Trigger: "cron"})
		if err != nil {
			return nil, err
		}
		// Unique keeps a slow audit from piling up behind the next tick.
		schedules = append(schedules, schedule{cfg.IntegrityCron, task, []asynq.Option{asynq.MaxRetry(3), asynq.Unique(time.Hour)}})
	}
	if cfg.Prune != nil && cfg.PruneCron != "" {
		schedules = append(schedules, schedule{cfg.PruneCron, NewIdempotencyPruneTask(), []asynq.Option{asynq.MaxRetry(1)}})
	}
	if len(schedules) > 0 {
		w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{Location: time.UTC})
		for _, sc := range schedules {
			opts := append([]asynq.Option{asynq.Queue(QueueDefault)}, sc.opts...)
			if _, err := w.scheduler.Register(sc.spec, sc.task, opts...); err != nil {
				return nil, fmt.Errorf("worker: schedule %q: %w", sc.spec, err)
			}
		}
	}
	return w, nil
}

type schedule struct {
	spec string
	task *asynq.Task
	opts []asynq.Option
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Shutdown()
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.logger.Info("worker started", slog.Bool("scheduled", w.scheduler != nil))
	<-ctx.Done()
	w.server.Shutdown()
	return ctx.Err()
}

func (w *Worker) taskFailed(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	w.logger.Error("task failed",
		slog.String("type", task.Type()),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err),
	)
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) { a.logger.Error(fmt.Sprint(args...)) }
