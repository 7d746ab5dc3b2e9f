package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgercore/jobs"
)

// QueueInspector is the part of *asynq.Inspector the CLI reads.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI enqueues and inspects worker tasks from the command line.
type JobsCLI struct {
	enqueuer  jobs.Enqueuer
	inspector QueueInspector
	closers   []io.Closer
}

// NewJobsCLI connects to the asynq Redis instance at redisAddr.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{enqueuer: client, inspector: inspector, closers: []io.Closer{client, inspector}}, nil
}

// NewJobsCLIWith builds a JobsCLI over existing collaborators.
func NewJobsCLIWith(enqueuer jobs.Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// Close releases the Redis connections opened by NewJobsCLI.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues task name on behalf of an operator.
func (c *JobsCLI) Trigger(ctx context.Context, name string, failOnFindings bool) (*asynq.TaskInfo, error) {
	if c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskLedgerIntegrity:
		return c.enqueuer.EnqueueLedgerIntegrity(ctx, jobs.LedgerIntegrityPayload{Trigger: "cli", FailOnFindings: failOnFindings})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported task %q", name)
	}
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
	Processed int
	Failed    int
}

// InspectQueue reads the default queue counters.
func (c *JobsCLI) InspectQueue(context.Context) (QueueStats, error) {
	if c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending, stats.Active, stats.Scheduled = info.Pending, info.Active, info.Scheduled
		stats.Retry, stats.Archived = info.Retry, info.Archived
		stats.Processed, stats.Failed = info.Processed, info.Failed
	}
	return stats, nil
}

// ScheduledIntegrity lists integrity runs waiting in the scheduled set.
func (c *JobsCLI) ScheduledIntegrity(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, task := range tasks {
		if task.Type == jobs.TaskLedgerIntegrity {
			out = append(out, task)
		}
	}
	return out, nil
}

// JobsCommand runs `jobs trigger [task] [--fail-on-findings]`, `jobs stats`
// or `jobs scheduled` and returns the process exit code.
func JobsCommand(ctx context.Context, c *JobsCLI, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "jobs: expected trigger, stats or scheduled")
		return 2
	}
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		failOnFindings := fs.Bool("fail-on-findings", false, "fail and retry the run when findings exist")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		name := jobs.TaskLedgerIntegrity
		if fs.NArg() > 0 {
			name = fs.Arg(0)
		}
		info, err := c.Trigger(ctx, name, *failOnFindings)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", name, info.ID, info.Queue)
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d processed=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Processed, stats.Failed)
	case "scheduled":
		tasks, err := c.ScheduledIntegrity(ctx, 20)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
			return 1
		}
		for _, task := range tasks {
			_, _ = fmt.Fprintf(stdout, "%s %s at %s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
		}
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
	return 0
}
