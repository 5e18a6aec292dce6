package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
	"github.com/allisson/legalvault/internal/database"
	apperrors "github.com/allisson/legalvault/internal/errors"
)

// MySQLStore implements QueryStore for MySQL (§4.5.4), mirroring
// PostgreSQLStore's shape with `?` placeholders and backtick-quoted
// identifiers where MySQL's reserved-word rules require it.
type MySQLStore struct {
	db *sql.DB
	tx database.TxManager
}

// NewMySQLStore creates a MySQLStore over db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, tx: database.NewTxManager(db)}
}

func mysqlEventColumns() string {
	return "event_id, event_type, event_level, `timestamp`, user_id, client_id, matter_id, " +
		"document_id, key_id, source_service, source_function, details, security_context, " +
		"compliance_flags, retention_until, signature"
}

// AppendBatch implements Store: insert every event in a single transaction.
func (m *MySQLStore) AppendBatch(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, m.db)
		for _, e := range events {
			detailsJSON, securityJSON, flagsJSON, err := marshalEvent(e)
			if err != nil {
				return err
			}

			query := fmt.Sprintf(`INSERT INTO audit_events (%s)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, mysqlEventColumns())

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

// Search mirrors PostgreSQLStore.Search with `?` placeholders.
func (m *MySQLStore) Search(ctx context.Context, criteria SearchCriteria, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any

	if len(criteria.EventTypes) > 0 {
		placeholders := make([]string, len(criteria.EventTypes))
		for i, et := range criteria.EventTypes {
			placeholders[i] = "?"
			args = append(args, string(et))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if criteria.Level != "" {
		conditions = append(conditions, "event_level = ?")
		args = append(args, string(criteria.Level))
	}
	if !criteria.Start.IsZero() {
		conditions = append(conditions, "`timestamp` >= ?")
		args = append(args, criteria.Start)
	}
	if !criteria.End.IsZero() {
		conditions = append(conditions, "`timestamp` <= ?")
		args = append(args, criteria.End)
	}
	if criteria.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, criteria.ClientID)
	}
	if criteria.MatterID != "" {
		conditions = append(conditions, "matter_id = ?")
		args = append(args, criteria.MatterID)
	}
	if criteria.DocumentID != "" {
		conditions = append(conditions, "document_id = ?")
		args = append(args, criteria.DocumentID)
	}
	if criteria.KeyID != "" {
		conditions = append(conditions, "key_id = ?")
		args = append(args, criteria.KeyID)
	}
	if criteria.SourceService != "" {
		conditions = append(conditions, "source_service = ?")
		args = append(args, criteria.SourceService)
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_events`, mysqlEventColumns())
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY `timestamp` DESC"
	if limit > 0 {
		query += " LIMIT ?"
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
func (m *MySQLStore) RecordKeyAccess(ctx context.Context, rec *KeyAccessRecord) error {
	querier := database.GetTx(ctx, m.db)
	query := `INSERT INTO key_access_log
		(key_id, access_type, accessed_by, accessed_at, client_id, matter_id, granted, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
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
func (m *MySQLStore) RecordFailedOperation(ctx context.Context, rec *FailedOperationRecord) error {
	querier := database.GetTx(ctx, m.db)
	query := `INSERT INTO failed_operations
		(op_type, document_id, key_id, failure_reason, failed_at, retry_count, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := querier.ExecContext(ctx, query,
		rec.OpType, rec.DocumentID, rec.KeyID, rec.FailureReason, rec.FailedAt, rec.RetryCount, rec.Resolved,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record failed operation")
	}
	return nil
}

// FailedOperationsInRange returns every failed-operations row in [start, end].
func (m *MySQLStore) FailedOperationsInRange(ctx context.Context, start, end time.Time) ([]*FailedOperationRecord, error) {
	querier := database.GetTx(ctx, m.db)
	query := `SELECT op_type, document_id, key_id, failure_reason, failed_at, retry_count, resolved
		FROM failed_operations WHERE failed_at >= ? AND failed_at <= ? ORDER BY failed_at DESC`

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
