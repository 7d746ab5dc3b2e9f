package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
)

// Auditor runs the ledger integrity checks.
type Auditor interface {
	Run(ctx context.Context) ([]ledger.Finding, error)
}

// IntegrityOptions defines flags for the integrity command.
type IntegrityOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IntegritySummary is the JSON output of the integrity command.
type IntegritySummary struct {
	OK       bool             `json:"ok"`
	Findings []ledger.Finding `json:"findings"`
}

// IntegrityCommand runs the audit in-process and prints the findings. It
// returns 0 when clean, 10 when findings exist and 1 on failure.
func IntegrityCommand(ctx context.Context, auditor Auditor, opts IntegrityOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	findings, err := auditor.Run(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "integrity: %v\n", err)
		return 1
	}
	if findings == nil {
		findings = []ledger.Finding{}
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(IntegritySummary{OK: len(findings) == 0, Findings: findings}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "integrity: encode json: %v\n", err)
			return 1
		}
	} else {
		renderFindings(opts.Stdout, findings)
	}
	if len(findings) > 0 {
		return 10
	}
	return 0
}

func renderFindings(w io.Writer, findings []ledger.Finding) {
	if len(findings) == 0 {
		_, _ = fmt.Fprintln(w, "ledger integrity: no findings")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KIND\tCOMPANY\tFISCAL YEAR\tENTRY\tDETAIL")
	for _, f := range findings {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", f.Kind, f.CompanyID, f.FiscalYearID, f.EntryID, f.Detail)
	}
	_ = tw.Flush()
}
