package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/legalvault/internal/audit/domain"
	"github.com/allisson/legalvault/internal/testutil"
)

func TestNewPostgreSQLStore(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	store := NewPostgreSQLStore(db)
	assert.NotNil(t, store)
}

func TestPostgreSQLStoreAppendBatchAndSearch(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	store := NewPostgreSQLStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	event := &domain.Event{
		EventID:         "evt-1",
		EventType:       domain.EventDocumentEncrypted,
		EventLevel:      domain.LevelInfo,
		Timestamp:       now,
		ClientID:        "client-1",
		MatterID:        "matter-1",
		DocumentID:      "doc-1",
		Details:         map[string]any{"compliance_level": "attorney_client"},
		ComplianceFlags: []string{domain.FlagAttorneyClientPrivilege},
		RetentionUntil:  now.AddDate(7, 0, 0),
	}

	require.NoError(t, store.AppendBatch(ctx, []*domain.Event{event}))

	events, err := store.Search(ctx, SearchCriteria{DocumentID: "doc-1"}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.Equal(t, []string{domain.FlagAttorneyClientPrivilege}, events[0].ComplianceFlags)
}

func TestPostgreSQLStoreRecordKeyAccessAndFailedOperation(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	store := NewPostgreSQLStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordKeyAccess(ctx, &KeyAccessRecord{
		KeyID: "key-1", AccessType: "decrypt", AccessedAt: now, Granted: true,
	}))

	require.NoError(t, store.RecordFailedOperation(ctx, &FailedOperationRecord{
		OpType: "decrypt", DocumentID: "doc-1", FailureReason: "auth_tag_mismatch", FailedAt: now,
	}))

	ops, err := store.FailedOperationsInRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "auth_tag_mismatch", ops[0].FailureReason)
}
