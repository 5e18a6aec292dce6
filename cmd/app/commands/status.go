package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/allisson/legalvault/internal/facade"
)

// RunSystemStatus implements system_status (§4.7).
func RunSystemStatus(ctx context.Context, f *facade.Facade, writer io.Writer) error {
	status, err := f.SystemStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get system status: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "keys_due_for_rotation=%d overdue_keys=%d recent_events=%d recent_failures=%d\n",
		status.KeysDueForRotation, status.OverdueKeys, status.RecentEventCount, status.RecentFailureCount)
	return nil
}

// RunComprehensiveAudit implements §4.7's on-demand comprehensive audit:
// a COMPREHENSIVE verification sweep plus a compliance report over
// [start, end].
func RunComprehensiveAudit(ctx context.Context, f *facade.Facade, writer io.Writer, start, end time.Time) error {
	sweep, report, err := f.PerformComprehensiveAudit(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to run comprehensive audit: %w", err)
	}

	failed := 0
	for _, rec := range sweep.Records {
		if rec.Failed() {
			failed++
		}
	}
	_, _ = fmt.Fprintf(writer, "sweep: total=%d failures=%d failure_rate=%.4f\n",
		len(sweep.Records), failed, sweep.FailureRate())
	_, _ = fmt.Fprintf(writer, "report: total_events=%d violations=%d\n",
		report.TotalEvents, report.ComplianceViolations)
	return nil
}
