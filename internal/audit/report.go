package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// ComplianceReport is generate_compliance_report's return value (§4.5.3).
type ComplianceReport struct {
	ReportType           string
	Start                time.Time
	End                  time.Time
	ClientID             string
	MatterID             string
	TotalEvents          int
	EncryptionOperations int
	KeyOperations        int
	SecurityEvents       int
	ComplianceViolations int
	EventTypeBreakdown   map[domain.EventType]int
	FailureTypeBreakdown map[string]int
	Recommendations      []string
}

var encryptionOperationTypes = map[domain.EventType]bool{
	domain.EventDocumentEncrypted: true,
	domain.EventDocumentDecrypted: true,
	domain.EventBackupEncrypted:   true,
	domain.EventBackupDecrypted:   true,
}

var keyOperationTypes = map[domain.EventType]bool{
	domain.EventKeyCreated:   true,
	domain.EventKeyAccessed:  true,
	domain.EventKeyRotated:   true,
	domain.EventKeyDeprecated: true,
	domain.EventKeyRevoked:   true,
}

// GenerateComplianceReport implements §4.5.3: aggregates events in
// [start, end], optionally scoped to (client_id, matter_id), and derives
// textual recommendations by threshold (§8 scenario 6).
func (l *Ledger) GenerateComplianceReport(
	ctx context.Context,
	reportType string,
	start, end time.Time,
	clientID, matterID string,
) (*ComplianceReport, error) {
	events, err := l.store.Search(ctx, SearchCriteria{
		Start:    start,
		End:      end,
		ClientID: clientID,
		MatterID: matterID,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to generate compliance report: %w", err)
	}

	report := &ComplianceReport{
		ReportType:           reportType,
		Start:                start,
		End:                  end,
		ClientID:             clientID,
		MatterID:             matterID,
		EventTypeBreakdown:   make(map[domain.EventType]int),
		FailureTypeBreakdown: make(map[string]int),
	}

	for _, e := range events {
		report.TotalEvents++
		report.EventTypeBreakdown[e.EventType]++

		if encryptionOperationTypes[e.EventType] {
			report.EncryptionOperations++
		}
		if keyOperationTypes[e.EventType] {
			report.KeyOperations++
		}
		if e.EventLevel == domain.LevelSecurity {
			report.SecurityEvents++
		}
		if len(e.ComplianceFlags) > 0 {
			report.ComplianceViolations++
		}
		if e.EventType == domain.EventEncryptionFailed || e.EventType == domain.EventDecryptionFailed {
			if reason, ok := e.Details["failure_reason"].(string); ok && reason != "" {
				report.FailureTypeBreakdown[reason]++
			} else {
				report.FailureTypeBreakdown["unknown"]++
			}
		}
	}

	report.Recommendations = buildRecommendations(report)
	return report, nil
}

// buildRecommendations derives textual recommendations from threshold
// checks over the aggregated report (§8 scenario 6).
func buildRecommendations(r *ComplianceReport) []string {
	var out []string

	if r.ComplianceViolations > 0 {
		out = append(out, fmt.Sprintf("Review and address %d compliance violations", r.ComplianceViolations))
	}

	failures := r.FailureTypeBreakdown
	totalFailures := 0
	for _, count := range failures {
		totalFailures += count
	}
	if r.EncryptionOperations > 0 {
		ratio := float64(totalFailures) / float64(r.EncryptionOperations)
		if ratio > 0.05 {
			out = append(out, "Encryption failure rate is high")
		}
	}

	if r.SecurityEvents > 0 {
		out = append(out, fmt.Sprintf("Investigate %d security-level events", r.SecurityEvents))
	}

	return out
}
