package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// TestMain guards against goroutine leaks from Ledger.Run's background
// flush loop: every test that starts it must leave it stopped.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeQueryStore is an in-memory QueryStore for exercising Ledger's logic
// without a real database, mirroring how kms/store_test.go exercises the
// KMS store against an in-memory vault.Backend.
type fakeQueryStore struct {
	mu         sync.Mutex
	events     []*domain.Event
	keyAccess  []*KeyAccessRecord
	failedOps  []*FailedOperationRecord
}

func newFakeQueryStore() *fakeQueryStore {
	return &fakeQueryStore{}
}

func (f *fakeQueryStore) AppendBatch(_ context.Context, events []*domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeQueryStore) Search(_ context.Context, criteria SearchCriteria, limit int) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	typeSet := make(map[domain.EventType]bool, len(criteria.EventTypes))
	for _, et := range criteria.EventTypes {
		typeSet[et] = true
	}

	var out []*domain.Event
	for i := len(f.events) - 1; i >= 0; i-- {
		e := f.events[i]
		if len(typeSet) > 0 && !typeSet[e.EventType] {
			continue
		}
		if criteria.Level != "" && e.EventLevel != criteria.Level {
			continue
		}
		if !criteria.Start.IsZero() && e.Timestamp.Before(criteria.Start) {
			continue
		}
		if !criteria.End.IsZero() && e.Timestamp.After(criteria.End) {
			continue
		}
		if criteria.ClientID != "" && e.ClientID != criteria.ClientID {
			continue
		}
		if criteria.MatterID != "" && e.MatterID != criteria.MatterID {
			continue
		}
		if criteria.DocumentID != "" && e.DocumentID != criteria.DocumentID {
			continue
		}
		if criteria.KeyID != "" && e.KeyID != criteria.KeyID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQueryStore) RecordKeyAccess(_ context.Context, rec *KeyAccessRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyAccess = append(f.keyAccess, rec)
	return nil
}

func (f *fakeQueryStore) RecordFailedOperation(_ context.Context, rec *FailedOperationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedOps = append(f.failedOps, rec)
	return nil
}

func (f *fakeQueryStore) FailedOperationsInRange(_ context.Context, start, end time.Time) ([]*FailedOperationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*FailedOperationRecord
	for _, r := range f.failedOps {
		if !r.FailedAt.Before(start) && !r.FailedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestLedger(t *testing.T) (*Ledger, *fakeQueryStore) {
	t.Helper()
	store := newFakeQueryStore()
	signingKey := make([]byte, 32)
	signer, err := NewSigner(signingKey)
	require.NoError(t, err)
	ledger := NewLedger(store, BufferConfig{MaxSize: 1000, FlushInterval: time.Hour}, signer, nil)
	return ledger, store
}

func TestLogEventDerivesRetentionAndFlags(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	eventID, err := ledger.LogEvent(ctx, domain.EventDocumentEncrypted, map[string]any{
		"compliance_level": "attorney_client",
	}, LogEventParams{ClientID: "c1", MatterID: "m1", DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, eventID)

	require.NoError(t, ledger.Flush(ctx))

	events, err := store.Search(ctx, SearchCriteria{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, eventID, e.EventID)
	assert.Contains(t, e.ComplianceFlags, domain.FlagAttorneyClientPrivilege)
	assert.Contains(t, e.ComplianceFlags, domain.FlagDocumentRetention)
	assert.WithinDuration(t, e.Timestamp.AddDate(7, 0, 0), e.RetentionUntil, time.Second)
}

func TestRecordKeyAccessEmitsSecurityLevelOnDenial(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.RecordKeyAccess(ctx, KeyAccessRecord{
		KeyID: "key-1", AccessType: "decrypt", Granted: false, FailureReason: "revoked",
	}))
	require.NoError(t, ledger.Flush(ctx))

	require.Len(t, store.keyAccess, 1)
	assert.False(t, store.keyAccess[0].Granted)

	events, err := store.Search(ctx, SearchCriteria{EventTypes: []domain.EventType{domain.EventKeyAccessed}}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.LevelSecurity, events[0].EventLevel)
}

func TestTrackDecryptionAttemptsRaisesHighFailureRateAlert(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, err := ledger.LogEvent(ctx, domain.EventDecryptionFailed, nil, LogEventParams{
			DocumentID: "doc-1",
			UserID:     "user-1",
		})
		require.NoError(t, err)
	}
	require.NoError(t, ledger.Flush(ctx))

	stats, err := ledger.TrackDecryptionAttempts(ctx, "doc-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 11, stats.FailedCount)
	assert.Contains(t, stats.AlertsRaised, "HIGH_DECRYPTION_FAILURE_RATE")

	require.NoError(t, ledger.Flush(ctx))
	events, err := store.Search(ctx, SearchCriteria{EventTypes: []domain.EventType{domain.EventSecurityAlert}}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "HIGH_DECRYPTION_FAILURE_RATE", events[0].Details["alert_type"])
}

func TestGenerateComplianceReportCountsViolationsAndRecommends(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.LogEvent(ctx, domain.EventDocumentEncrypted, map[string]any{
		"compliance_level": "attorney_client",
	}, LogEventParams{})
	require.NoError(t, err)
	_, err = ledger.LogEvent(ctx, domain.EventEncryptionFailed, map[string]any{
		"failure_reason": "auth_tag_mismatch",
	}, LogEventParams{})
	require.NoError(t, err)
	require.NoError(t, ledger.Flush(ctx))

	report, err := ledger.GenerateComplianceReport(ctx, "standard", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalEvents)
	assert.Equal(t, 1, report.ComplianceViolations)
	assert.Contains(t, report.Recommendations, "Review and address 1 compliance violations")
}

func TestRunStopsCleanlyOnContextCancel(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ledger.Run(ctx)
	}()

	_, err := ledger.LogEvent(ctx, domain.EventSystemStartup, nil, LogEventParams{})
	require.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	events, err := store.Search(context.Background(), SearchCriteria{EventTypes: []domain.EventType{domain.EventSystemStartup}}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1, "Run must flush pending events before returning")
}
