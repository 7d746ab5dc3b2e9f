package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity is the task type for the ledger integrity audit.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyPrune removes expired Idempotency-Key claims.
	TaskIdempotencyPrune = "idempotency:prune"
)

// LedgerIntegrityPayload describes an integrity audit run.
type LedgerIntegrityPayload struct {
	// Trigger records who asked for the run, "cron" or "api".
	Trigger string `json:"trigger"`
	// FailOnFindings makes the task fail, and so retry, when anything is found.
	FailOnFindings bool `json:"fail_on_findings,omitempty"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	if payload.Trigger == "" {
		payload.Trigger = "cron"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewIdempotencyPruneTask constructs the prune task. It carries no payload;
// retention is worker configuration.
func NewIdempotencyPruneTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyPrune, nil)
}
