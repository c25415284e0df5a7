// source: audit_log.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const auditLogColumns = `id, action, severity, sheet_key, record_id, row_index, outcome, ip_address, user_agent, session_id, row_data, reason, created_at`

const insertAuditLog = `-- name: InsertAuditLog :one
INSERT INTO audit_log (
    action, severity, sheet_key, record_id, row_index, outcome,
    ip_address, user_agent, session_id, row_data, reason
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
RETURNING ` + auditLogColumns

type InsertAuditLogParams struct {
	Action    string
	Severity  string
	SheetKey  string
	RecordID  pgtype.Text
	RowIndex  pgtype.Int4
	Outcome   string
	IpAddress pgtype.Text
	UserAgent pgtype.Text
	SessionID pgtype.Text
	RowData   []byte
	Reason    pgtype.Text
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, insertAuditLog,
		arg.Action,
		arg.Severity,
		arg.SheetKey,
		arg.RecordID,
		arg.RowIndex,
		arg.Outcome,
		arg.IpAddress,
		arg.UserAgent,
		arg.SessionID,
		arg.RowData,
		arg.Reason,
	)
	var i AuditLog
	err := row.Scan(
		&i.ID,
		&i.Action,
		&i.Severity,
		&i.SheetKey,
		&i.RecordID,
		&i.RowIndex,
		&i.Outcome,
		&i.IpAddress,
		&i.UserAgent,
		&i.SessionID,
		&i.RowData,
		&i.Reason,
		&i.CreatedAt,
	)
	return i, err
}

const listAuditLog = `-- name: ListAuditLog :many
SELECT ` + auditLogColumns + `
FROM audit_log
WHERE ($1::text = '' OR sheet_key = $1)
  AND ($2::text = '' OR action = $2)
  AND created_at >= $3
  AND created_at < $4
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

type ListAuditLogParams struct {
	SheetKey  string
	Action    string
	CreatedAt pgtype.Timestamptz
	Before    pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListAuditLog(ctx context.Context, arg ListAuditLogParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLog,
		arg.SheetKey,
		arg.Action,
		arg.CreatedAt,
		arg.Before,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		var i AuditLog
		if err := rows.Scan(
			&i.ID,
			&i.Action,
			&i.Severity,
			&i.SheetKey,
			&i.RecordID,
			&i.RowIndex,
			&i.Outcome,
			&i.IpAddress,
			&i.UserAgent,
			&i.SessionID,
			&i.RowData,
			&i.Reason,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const purgeAuditLogBefore = `-- name: PurgeAuditLogBefore :execrows
DELETE FROM audit_log
WHERE created_at < $1`

func (q *Queries) PurgeAuditLogBefore(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, purgeAuditLogBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
