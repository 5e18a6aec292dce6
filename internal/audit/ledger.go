package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// KeyAccessRecord is a single row of the key access log (§4.5.2).
type KeyAccessRecord struct {
	KeyID         string
	AccessType    string
	AccessedBy    string
	AccessedAt    time.Time
	ClientID      string
	MatterID      string
	Granted       bool
	FailureReason string
}

// FailedOperationRecord is a single row of the failed operations log (§4.5.2).
type FailedOperationRecord struct {
	OpType        string
	DocumentID    string
	KeyID         string
	FailureReason string
	FailedAt      time.Time
	RetryCount    int
	Resolved      bool
}

// QueryStore is the indexed store's full contract: buffered-batch append
// (Store, used by Buffer) plus the derived tables and query surface
// (§4.5.2, §4.5.3, §4.5.4) a concrete SQL backend must serve.
type QueryStore interface {
	Store

	Search(ctx context.Context, criteria SearchCriteria, limit int) ([]*domain.Event, error)

	RecordKeyAccess(ctx context.Context, rec *KeyAccessRecord) error
	RecordFailedOperation(ctx context.Context, rec *FailedOperationRecord) error

	FailedOperationsInRange(ctx context.Context, start, end time.Time) ([]*FailedOperationRecord, error)
}

// piiMarkerKeys names the detail keys this deployment treats as
// personal-data indicators (§4.5.1 step 3, PERSONAL_DATA flag).
var piiMarkerKeys = []string{"ssn", "social_security_number", "date_of_birth", "personal_data"}

// Ledger implements the Audit Ledger (C5): it signs and buffers events for
// asynchronous flush (§4.5.1), while the derived-table writes (§4.5.2) and
// the query surface (§4.5.3) go straight to the indexed store, since they
// are read immediately by callers (e.g. burst detection) and must be
// visible without waiting on a flush cycle.
type Ledger struct {
	buffer *Buffer
	store  QueryStore
	signer *Signer
	logger *slog.Logger

	burstMaxFailedAttempts int
	burstMaxUniqueSources  int
}

// NewLedger creates a Ledger. store serves both the Buffer's flush target
// and the direct-write/query paths.
func NewLedger(store QueryStore, bufferConfig BufferConfig, signer *Signer, logger *slog.Logger) *Ledger {
	return &Ledger{
		buffer:                 NewBuffer(store, bufferConfig, logger),
		store:                  store,
		signer:                 signer,
		logger:                 logger,
		burstMaxFailedAttempts: 10,
		burstMaxUniqueSources:  5,
	}
}

// Run drives the buffer's background flush loop until ctx is cancelled.
func (l *Ledger) Run(ctx context.Context) {
	l.buffer.Run(ctx)
}

// Flush forces an immediate synchronous flush of buffered events.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.buffer.Flush(ctx)
}

// LogEventParams carries log_event's optional identity fields (§4.5.1).
type LogEventParams struct {
	Level          domain.Level
	UserID         string
	ClientID       string
	MatterID       string
	DocumentID     string
	KeyID          string
	SourceService  string
	SourceFunction string
}

// LogEvent implements §4.5.1: stamp event_id/timestamp, derive
// retention_until and compliance_flags deterministically, sign, and append
// to the in-memory buffer. Returns the assigned event_id.
func (l *Ledger) LogEvent(
	ctx context.Context,
	eventType domain.EventType,
	details map[string]any,
	params LogEventParams,
) (string, error) {
	level := params.Level
	if level == "" {
		level = domain.LevelInfo
	}

	now := time.Now().UTC()
	event := &domain.Event{
		EventID:        domain.NewEventID(),
		EventType:      eventType,
		EventLevel:     level,
		Timestamp:      now,
		UserID:         params.UserID,
		ClientID:       params.ClientID,
		MatterID:       params.MatterID,
		DocumentID:     params.DocumentID,
		KeyID:          params.KeyID,
		SourceService:  params.SourceService,
		SourceFunction: params.SourceFunction,
		Details:        details,
		RetentionUntil: domain.RetentionFor(eventType, level, now),
	}
	event.ComplianceFlags = domain.ComplianceFlags(eventType, level, details, piiMarkerKeys)

	if l.signer != nil {
		if err := l.signer.Sign(event); err != nil {
			return "", fmt.Errorf("audit: failed to sign event: %w", err)
		}
	}

	l.buffer.Enqueue(event)
	return event.EventID, nil
}

// RecordKeyAccess writes a key access log row AND emits a KEY_ACCESSED
// audit event, SECURITY level if access was denied (§4.5.2).
func (l *Ledger) RecordKeyAccess(ctx context.Context, rec KeyAccessRecord) error {
	if rec.AccessedAt.IsZero() {
		rec.AccessedAt = time.Now().UTC()
	}

	if err := l.store.RecordKeyAccess(ctx, &rec); err != nil {
		if l.logger != nil {
			l.logger.Error("failed to record key access", slog.Any("error", err))
		}
	}

	level := domain.LevelInfo
	if !rec.Granted {
		level = domain.LevelSecurity
	}

	details := map[string]any{
		"access_type": rec.AccessType,
		"granted":     rec.Granted,
	}
	if rec.FailureReason != "" {
		details["failure_reason"] = rec.FailureReason
	}

	_, err := l.LogEvent(ctx, domain.EventKeyAccessed, details, LogEventParams{
		Level:          level,
		UserID:         rec.AccessedBy,
		ClientID:       rec.ClientID,
		MatterID:       rec.MatterID,
		KeyID:          rec.KeyID,
		SourceService:  "kms",
		SourceFunction: "GetClientMatterKey",
	})
	return err
}

// RecordFailedOperation writes a failed-operations row AND emits an
// ENCRYPTION_FAILED/DECRYPTION_FAILED event depending on opType (§4.5.2).
func (l *Ledger) RecordFailedOperation(ctx context.Context, rec FailedOperationRecord) error {
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now().UTC()
	}

	if err := l.store.RecordFailedOperation(ctx, &rec); err != nil {
		if l.logger != nil {
			l.logger.Error("failed to record failed operation", slog.Any("error", err))
		}
	}

	eventType := domain.EventEncryptionFailed
	if rec.OpType == "decrypt" {
		eventType = domain.EventDecryptionFailed
	}

	_, err := l.LogEvent(ctx, eventType, map[string]any{
		"op_type":        rec.OpType,
		"failure_reason": rec.FailureReason,
		"retry_count":    rec.RetryCount,
	}, LogEventParams{
		Level:          domain.LevelError,
		DocumentID:     rec.DocumentID,
		KeyID:          rec.KeyID,
		SourceService:  "facade",
		SourceFunction: rec.OpType,
	})
	return err
}
