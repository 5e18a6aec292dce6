package audit

import (
	"context"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// SearchCriteria filters the query surface (§4.5.3): any subset of these
// fields may be set. Zero values are treated as "no filter" for that field.
type SearchCriteria struct {
	EventTypes    []domain.EventType
	Level         domain.Level
	Start         time.Time
	End           time.Time
	ClientID      string
	MatterID      string
	DocumentID    string
	KeyID         string
	SourceService string
}

// defaultSearchLimit bounds unbounded searches so a forgotten limit can
// never turn into an unindexed full-table scan.
const defaultSearchLimit = 500

// Search implements §4.5.3: filter by any subset of criteria, returning
// events newest-first and enforcing limit.
func (l *Ledger) Search(ctx context.Context, criteria SearchCriteria, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return l.store.Search(ctx, criteria, limit)
}
