package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
	"github.com/odyssey-erp/ledgercore/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ErrIntegrityFindings is returned when a run asked to fail on findings.
var ErrIntegrityFindings = errors.New("ledger integrity: findings reported")

// IntegrityAuditor runs the ledger invariant checks.
type IntegrityAuditor interface {
	Run(ctx context.Context) ([]ledger.Finding, error)
}

// LedgerIntegrityJob audits posted entries and sequence counters.
type LedgerIntegrityJob struct {
	Auditor IntegrityAuditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob constructs the integrity handler.
func NewLedgerIntegrityJob(auditor IntegrityAuditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Auditor: auditor, Logger: logger, Metrics: metrics}
}

// Handle executes one audit run. Findings are logged and counted; the task
// only fails on them when the payload asks for it.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Auditor == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger integrity: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	run := j.metrics().Start(TaskLedgerIntegrity)
	defer func() {
		err = run.Finish(err)
	}()

	logger := j.logger().With(slog.String("job", TaskLedgerIntegrity), slog.String("trigger", payload.Trigger))
	logger.Info("starting ledger integrity audit")

	findings, err := j.Auditor.Run(ctx)
	if err != nil {
		logger.Error("audit failed", slog.Any("error", err))
		return err
	}

	type bucket struct {
		kind    string
		company int64
	}
	counts := map[bucket]int{}
	for _, f := range findings {
		logger.Warn("ledger integrity finding",
			slog.String("kind", f.Kind),
			slog.Int64("company_id", f.CompanyID),
			slog.Int64("fiscal_year_id", f.FiscalYearID),
			slog.Int64("entry_id", f.EntryID),
			slog.String("detail", f.Detail),
		)
		counts[bucket{f.Kind, f.CompanyID}]++
	}
	for b, n := range counts {
		j.metrics().AddFindings(b.kind, b.company, n)
	}

	logger.Info("ledger integrity audit completed", slog.Int("findings", len(findings)))
	if len(findings) > 0 && payload.FailOnFindings {
		return fmt.Errorf("%w: %d", ErrIntegrityFindings, len(findings))
	}
	return nil
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
