package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
	"github.com/allisson/legalvault/internal/database"
	apperrors "github.com/allisson/legalvault/internal/errors"
)

// PostgreSQLStore implements QueryStore for PostgreSQL (§4.5.4). Grounded
// on the teacher's PostgreSQLAuditLogRepository: native driver, querier
// resolved through database.GetTx so batch appends participate in a single
// transaction, dynamic WHERE-clause construction for the search surface.
type PostgreSQLStore struct {
	db *sql.DB
	tx database.TxManager
}

// NewPostgreSQLStore creates a PostgreSQLStore over db.
func NewPostgreSQLStore(db *sql.DB) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, tx: database.NewTxManager(db)}
}

func pgEventColumns() string {
	return `event_id, event_type, event_level, "timestamp", user_id, client_id, matter_id,
		document_id, key_id, source_service, source_function, details, security_context,
		compliance_flags, retention_until, signature`
}

func marshalEvent(e *domain.Event) (detailsJSON, securityJSON, flagsJSON []byte, err error) {
	detailsJSON, err = json.Marshal(e.Details)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "audit: failed to marshal details")
	}
	securityJSON, err = json.Marshal(e.SecurityContext)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "audit: failed to marshal security context")
	}
	flagsJSON, err = json.Marshal(e.ComplianceFlags)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "audit: failed to marshal compliance flags")
	}
	return detailsJSON, securityJSON, flagsJSON, nil
}

func scanEvent(row interface{ Scan(dest ...any) error }) (*domain.Event, error) {
	var e domain.Event
	var detailsJSON, securityJSON, flagsJSON []byte

	if err := row.Scan(
		&e.EventID, &e.EventType, &e.EventLevel, &e.Timestamp, &e.UserID, &e.ClientID, &e.MatterID,
		&e.DocumentID, &e.KeyID, &e.SourceService, &e.SourceFunction, &detailsJSON, &securityJSON,
		&flagsJSON, &e.RetentionUntil, &e.Signature,
	); err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
			return nil, apperrors.Wrap(err, "audit: failed to unmarshal details")
		}
	}
	if len(securityJSON) > 0 {
		if err := json.Unmarshal(securityJSON, &e.SecurityContext); err != nil {
			return nil, apperrors.Wrap(err, "audit: failed to unmarshal security context")
		}
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &e.ComplianceFlags); err != nil {
			return nil, apperrors.Wrap(err, "audit: failed to unmarshal compliance flags")
		}
	}

	return &e, nil
}

// AppendBatch implements Store: insert every event in a single transaction.
func (p *PostgreSQLStore) AppendBatch(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return p.tx.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, p.db)
		for _, e := range events {
			detailsJSON, securityJSON, flagsJSON, err := marshalEvent(e)
			if err != nil {
				return err
			}

			query := fmt.Sprintf(`INSERT INTO audit_events (%s)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, pgEventColumns())

			_, err = querier.ExecContext(ctx, query,
				e.EventID, string(e.EventType), string(e.EventLevel), e.Timestamp, e.UserID, e.ClientID, e.MatterID,
				e.DocumentID, e.KeyID, e.SourceService, e.SourceFunction, detailsJSON, securityJSON,
				flagsJSON, e.RetentionUntil, e.Signature,
			)
			if err != nil {
				return apperrors.Wrap(err, "failed to insert audit event")
			}
		}
		return nil
	})
}

// Search implements §4.5.3/§4.5.4: dynamic WHERE-clause construction over
// any subset of criteria, newest-first, bounded by limit (limit <= 0 means
// unbounded, used by burst tracking and compliance reporting).
func (p *PostgreSQLStore) Search(ctx context.Context, criteria SearchCriteria, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, p.db)

	var conditions []string
	var args []any
	idx := 1

	if len(criteria.EventTypes) > 0 {
		placeholders := make([]string, len(criteria.EventTypes))
		for i, et := range criteria.EventTypes {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, string(et))
			idx++
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if criteria.Level != "" {
		conditions = append(conditions, fmt.Sprintf("event_level = $%d", idx))
		args = append(args, string(criteria.Level))
		idx++
	}
	if !criteria.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf(`"timestamp" >= $%d`, idx))
		args = append(args, criteria.Start)
		idx++
	}
	if !criteria.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf(`"timestamp" <= $%d`, idx))
		args = append(args, criteria.End)
		idx++
	}
	if criteria.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", idx))
		args = append(args, criteria.ClientID)
		idx++
	}
	if criteria.MatterID != "" {
		conditions = append(conditions, fmt.Sprintf("matter_id = $%d", idx))
		args = append(args, criteria.MatterID)
		idx++
	}
	if criteria.DocumentID != "" {
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", idx))
		args = append(args, criteria.DocumentID)
		idx++
	}
	if criteria.KeyID != "" {
		conditions = append(conditions, fmt.Sprintf("key_id = $%d", idx))
		args = append(args, criteria.KeyID)
		idx++
	}
	if criteria.SourceService != "" {
		conditions = append(conditions, fmt.Sprintf("source_service = $%d", idx))
		args = append(args, criteria.SourceService)
		idx++
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_events`, pgEventColumns())
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY "timestamp" DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, limit)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to search audit events")
	}
	defer func() { _ = rows.Close() }()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit events")
	}

	return events, nil
}

// RecordKeyAccess inserts a row into the key access log (§4.5.2).
func (p *PostgreSQLStore) RecordKeyAccess(ctx context.Context, rec *KeyAccessRecord) error {
	querier := database.GetTx(ctx, p.db)
	query := `INSERT INTO key_access_log
		(key_id, access_type, accessed_by, accessed_at, client_id, matter_id, granted, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := querier.ExecContext(ctx, query,
		rec.KeyID, rec.AccessType, rec.AccessedBy, rec.AccessedAt, rec.ClientID, rec.MatterID,
		rec.Granted, rec.FailureReason,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record key access")
	}
	return nil
}

// RecordFailedOperation inserts a row into the failed operations log (§4.5.2).
func (p *PostgreSQLStore) RecordFailedOperation(ctx context.Context, rec *FailedOperationRecord) error {
	querier := database.GetTx(ctx, p.db)
	query := `INSERT INTO failed_operations
		(op_type, document_id, key_id, failure_reason, failed_at, retry_count, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := querier.ExecContext(ctx, query,
		rec.OpType, rec.DocumentID, rec.KeyID, rec.FailureReason, rec.FailedAt, rec.RetryCount, rec.Resolved,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record failed operation")
	}
	return nil
}

// FailedOperationsInRange returns every failed-operations row in [start, end].
func (p *PostgreSQLStore) FailedOperationsInRange(ctx context.Context, start, end time.Time) ([]*FailedOperationRecord, error) {
	querier := database.GetTx(ctx, p.db)
	query := `SELECT op_type, document_id, key_id, failure_reason, failed_at, retry_count, resolved
		FROM failed_operations WHERE failed_at >= $1 AND failed_at <= $2 ORDER BY failed_at DESC`

	rows, err := querier.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list failed operations")
	}
	defer func() { _ = rows.Close() }()

	out := make([]*FailedOperationRecord, 0)
	for rows.Next() {
		var r FailedOperationRecord
		if err := rows.Scan(&r.OpType, &r.DocumentID, &r.KeyID, &r.FailureReason, &r.FailedAt, &r.RetryCount, &r.Resolved); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan failed operation")
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate failed operations")
	}

	return out, nil
}
