package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// DecryptionAttemptStats is track_decryption_attempts's return value
// (§4.5.3): counts plus unique accessor count over the requested window.
type DecryptionAttemptStats struct {
	DocumentID      string
	WindowStart     time.Time
	WindowEnd       time.Time
	SuccessCount    int
	FailedCount     int
	UniqueAccessors int
	AlertsRaised    []string
}

// TrackDecryptionAttempts implements §4.5.3: aggregates recent decryptions
// and failures for document_id within window, and emits SECURITY_ALERT
// events when either threshold is exceeded:
//   - failed_attempts > 10   => HIGH_DECRYPTION_FAILURE_RATE
//   - unique_sources > 5     => MULTIPLE_ACCESS_SOURCES
func (l *Ledger) TrackDecryptionAttempts(ctx context.Context, documentID string, window time.Duration) (*DecryptionAttemptStats, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	events, err := l.store.Search(ctx, SearchCriteria{
		EventTypes: []domain.EventType{domain.EventDocumentDecrypted, domain.EventDecryptionFailed},
		DocumentID: documentID,
		Start:      start,
		End:        end,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to track decryption attempts: %w", err)
	}

	stats := &DecryptionAttemptStats{DocumentID: documentID, WindowStart: start, WindowEnd: end}
	uniqueAccessors := make(map[string]struct{})

	for _, e := range events {
		if e.UserID != "" {
			uniqueAccessors[e.UserID] = struct{}{}
		}
		switch e.EventType {
		case domain.EventDocumentDecrypted:
			stats.SuccessCount++
		case domain.EventDecryptionFailed:
			stats.FailedCount++
		}
	}
	stats.UniqueAccessors = len(uniqueAccessors)

	if stats.FailedCount > l.burstMaxFailedAttempts {
		if _, err := l.LogEvent(ctx, domain.EventSecurityAlert, map[string]any{
			"alert_type":    "HIGH_DECRYPTION_FAILURE_RATE",
			"document_id":   documentID,
			"failed_count":  stats.FailedCount,
			"window_seconds": window.Seconds(),
		}, LogEventParams{
			Level:          domain.LevelSecurity,
			DocumentID:     documentID,
			SourceService:  "audit",
			SourceFunction: "TrackDecryptionAttempts",
		}); err != nil {
			return stats, err
		}
		stats.AlertsRaised = append(stats.AlertsRaised, "HIGH_DECRYPTION_FAILURE_RATE")
	}

	if stats.UniqueAccessors > l.burstMaxUniqueSources {
		if _, err := l.LogEvent(ctx, domain.EventSecurityAlert, map[string]any{
			"alert_type":       "MULTIPLE_ACCESS_SOURCES",
			"document_id":      documentID,
			"unique_accessors": stats.UniqueAccessors,
			"window_seconds":   window.Seconds(),
		}, LogEventParams{
			Level:          domain.LevelSecurity,
			DocumentID:     documentID,
			SourceService:  "audit",
			SourceFunction: "TrackDecryptionAttempts",
		}); err != nil {
			return stats, err
		}
		stats.AlertsRaised = append(stats.AlertsRaised, "MULTIPLE_ACCESS_SOURCES")
	}

	return stats, nil
}
