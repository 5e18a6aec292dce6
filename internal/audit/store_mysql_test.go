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

func TestNewMySQLStore(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)

	store := NewMySQLStore(db)
	assert.NotNil(t, store)
}

func TestMySQLStoreAppendBatchAndSearch(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	store := NewMySQLStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	event := &domain.Event{
		EventID:        "evt-1",
		EventType:      domain.EventKeyRotated,
		EventLevel:     domain.LevelInfo,
		Timestamp:      now,
		KeyID:          "key-1",
		Details:        map[string]any{"rotation_reason": "forced"},
		RetentionUntil: now.AddDate(7, 0, 0),
	}

	require.NoError(t, store.AppendBatch(ctx, []*domain.Event{event}))

	events, err := store.Search(ctx, SearchCriteria{KeyID: "key-1"}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "forced", events[0].Details["rotation_reason"])
}
