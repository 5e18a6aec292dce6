package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/allisson/legalvault/internal/audit"
	auditDomain "github.com/allisson/legalvault/internal/audit/domain"
)

// ParseDate accepts "YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS", defaulting to
// start of day for the date-only form.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", dateStr)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS): %s", dateStr)
	}
	return t, nil
}

// parseEventTypes splits a comma-separated --event-types flag value into
// domain.EventType values. An empty string means "no filter".
func parseEventTypes(raw string) []auditDomain.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]auditDomain.EventType, 0, len(parts))
	for _, p := range parts {
		types = append(types, auditDomain.EventType(strings.TrimSpace(p)))
	}
	return types
}

// RunSearchAuditEvents implements search_events (§4.5.3).
func RunSearchAuditEvents(
	ctx context.Context,
	ledger *audit.Ledger,
	writer io.Writer,
	eventTypes, clientID, matterID, documentID, keyID string,
	start, end time.Time,
	limit int,
) error {
	events, err := ledger.Search(ctx, audit.SearchCriteria{
		EventTypes: parseEventTypes(eventTypes),
		Start:      start,
		End:        end,
		ClientID:   clientID,
		MatterID:   matterID,
		DocumentID: documentID,
		KeyID:      keyID,
	}, limit)
	if err != nil {
		return fmt.Errorf("failed to search audit events: %w", err)
	}

	for _, e := range events {
		_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\tclient=%s\tmatter=%s\tdocument=%s\n",
			e.Timestamp.Format(time.RFC3339), e.EventType, e.EventLevel, e.ClientID, e.MatterID, e.DocumentID)
	}
	return nil
}

// RunComplianceReport implements generate_compliance_report (§4.5.3).
func RunComplianceReport(
	ctx context.Context,
	ledger *audit.Ledger,
	writer io.Writer,
	reportType string,
	start, end time.Time,
	clientID, matterID string,
) error {
	report, err := ledger.GenerateComplianceReport(ctx, reportType, start, end, clientID, matterID)
	if err != nil {
		return fmt.Errorf("failed to generate compliance report: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "total_events=%d encryption_operations=%d key_operations=%d security_events=%d compliance_violations=%d\n",
		report.TotalEvents, report.EncryptionOperations, report.KeyOperations, report.SecurityEvents, report.ComplianceViolations)
	for _, rec := range report.Recommendations {
		_, _ = fmt.Fprintf(writer, "recommendation: %s\n", rec)
	}
	return nil
}
