package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/cmd/odyssey/cli"
	"github.com/odyssey-erp/ledgercore/internal/app"
	"github.com/odyssey-erp/ledgercore/internal/audit"
	audithttp "github.com/odyssey-erp/ledgercore/internal/audit/http"
	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/observability"
	"github.com/odyssey-erp/ledgercore/internal/platform/cache"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/procurement"
	"github.com/odyssey-erp/ledgercore/internal/reports"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		changed, err := db.Migrate(cfg.PGDSN)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Bool("changed", changed))
	case "integrity":
		os.Exit(runIntegrity(ctx, cfg, logger, os.Args[2:]))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q (serve, migrate, integrity, jobs)\n", command)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.AutoMigrate {
		changed, err := db.Migrate(cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema ready", slog.Bool("migrated", changed))
	}

	dbpool, err := db.New(ctx, cfg.PoolConfig())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.Open(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("trial balance cache unavailable", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	txOpts := cfg.TxOptions()
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	poster := ledger.NewPoster(func() time.Time { return time.Now().UTC() })
	reportsCache := reports.NewCache(redisClient, cfg.TrialBalanceTTL)

	sequenceService := sequence.NewService(sequence.NewRepository(dbpool, txOpts)).WithObserver(metrics)
	ledgerService := ledger.NewService(ledger.NewRepository(dbpool, txOpts), poster, auditLogger).
		WithMetrics(metrics).
		Observe(reportsCache)
	masterDataService := masterdata.NewService(masterdata.NewRepository(dbpool, txOpts), auditLogger)
	procurementService := procurement.NewService(procurement.NewRepository(dbpool, txOpts), poster, auditLogger).
		WithMetrics(metrics).
		Observe(reportsCache)
	reportsService := reports.NewService(reports.NewRepository(dbpool), reportsCache)
	auditService := audit.NewService(audit.NewRepository(dbpool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return fmt.Errorf("jobs client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SequenceHandler:    sequence.NewHandler(logger, sequenceService, cfg.ContentionMaxRetries),
		LedgerHandler:      ledger.NewHandler(logger, ledgerService, cfg.ContentionMaxRetries),
		ProcurementHandler: procurement.NewHandler(logger, procurementService, cfg.ContentionMaxRetries),
		MasterDataHandler:  masterdata.NewHandler(logger, masterDataService),
		ReportsHandler:     reports.NewHandler(logger, reportsService),
		AuditHandler:       audithttp.NewHandler(logger, auditService),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
		Metrics:            metrics,
		Database:           dbpool,
		Idempotency:        shared.NewIdempotencyStore(dbpool),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func runIntegrity(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("integrity", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "print findings as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()
	txOpts := cfg.TxOptions()
	auditor := ledger.NewAuditor(ledger.NewRepository(pool, txOpts), sequence.NewRepository(pool, txOpts))
	return cli.IntegrityCommand(ctx, auditor, cli.IntegrityOptions{JSONOutput: *jsonOutput})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()
	return cli.JobsCommand(ctx, jobsCLI, args, os.Stdout, os.Stderr)
}
