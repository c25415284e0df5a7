package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AuditLog struct {
	ID        pgtype.UUID
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
	CreatedAt pgtype.Timestamptz
}
