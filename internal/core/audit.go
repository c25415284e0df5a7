package core

import (
	"context"
	"encoding/json"
	"time"

	db "github.com/JonMunkholm/shopsheet/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionLoad         AuditAction = "load"
	ActionRecordUpdate AuditAction = "record_update"
	ActionRecordDelete AuditAction = "record_delete"
	ActionRecordAppend AuditAction = "record_append"
	ActionCommit       AuditAction = "commit"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// DefaultAuditLimit caps audit queries that do not set a limit.
const DefaultAuditLimit = 100

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	Severity  AuditSeverity  `json:"severity"`
	SheetKey  string         `json:"sheetKey"`
	RecordID  string         `json:"recordId,omitempty"`
	RowIndex  *int           `json:"rowIndex,omitempty"`
	Outcome   string         `json:"outcome"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	RowData   map[string]any `json:"rowData,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// RowIndex is ignored when negative.
type AuditLogParams struct {
	Action   AuditAction
	SheetKey string
	RecordID string
	RowIndex int
	Failed   bool
	RowData  map[string]any
	Reason   string
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	SheetKey  string
	Action    AuditAction
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// AuditSink receives store activity. Implementations must not block for long;
// the store logs and ignores their errors.
type AuditSink interface {
	LogAudit(ctx context.Context, params AuditLogParams) error
}

// NopAudit discards audit entries.
type NopAudit struct{}

func (NopAudit) LogAudit(context.Context, AuditLogParams) error { return nil }

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction, failed bool) AuditSeverity {
	if failed {
		return SeverityHigh
	}
	switch action {
	case ActionRecordDelete:
		return SeverityHigh
	case ActionLoad:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditLog persists audit entries in PostgreSQL.
type AuditLog struct {
	q   *db.Queries
	now func() time.Time
}

// NewAuditLog creates an audit log over a pool, connection or transaction.
func NewAuditLog(conn db.DBTX) *AuditLog {
	return &AuditLog{q: db.New(conn), now: time.Now}
}

// LogAudit records one entry. Request metadata (IP, User-Agent, session) is
// taken from ctx.
func (a *AuditLog) LogAudit(ctx context.Context, params AuditLogParams) error {
	_, err := a.insert(ctx, params)
	return err
}

func (a *AuditLog) insert(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	var rowDataJSON []byte
	if params.RowData != nil {
		var err error
		rowDataJSON, err = json.Marshal(params.RowData)
		if err != nil {
			rowDataJSON = nil
		}
	}

	outcome := "ok"
	if params.Failed {
		outcome = "failed"
	}

	row, err := a.q.InsertAuditLog(ctx, db.InsertAuditLogParams{
		Action:    string(params.Action),
		Severity:  string(determineSeverity(params.Action, params.Failed)),
		SheetKey:  params.SheetKey,
		RecordID:  toPgText(params.RecordID),
		RowIndex:  toPgRowIndex(params.RowIndex),
		Outcome:   outcome,
		IpAddress: toPgText(GetIPAddressFromContext(ctx)),
		UserAgent: toPgText(GetUserAgentFromContext(ctx)),
		SessionID: toPgText(GetSessionIDFromContext(ctx)),
		RowData:   rowDataJSON,
		Reason:    toPgText(params.Reason),
	})
	if err != nil {
		return nil, err
	}
	return dbAuditLogToEntry(row), nil
}

// GetAuditLog retrieves audit log entries, newest first.
func (a *AuditLog) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}

	start := filter.StartTime
	if start.IsZero() {
		start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	end := filter.EndTime
	if end.IsZero() {
		end = a.now().Add(24 * time.Hour)
	}

	rows, err := a.q.ListAuditLog(ctx, db.ListAuditLogParams{
		SheetKey:  filter.SheetKey,
		Action:    string(filter.Action),
		CreatedAt: pgtype.Timestamptz{Time: start, Valid: true},
		Before:    pgtype.Timestamptz{Time: end, Valid: true},
		Limit:     int32(filter.Limit),
		Offset:    int32(filter.Offset),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *dbAuditLogToEntry(row))
	}
	return entries, nil
}

// PurgeOlderThan deletes entries older than the retention window.
func (a *AuditLog) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := a.now().Add(-retention)
	return a.q.PurgeAuditLogBefore(ctx, pgtype.Timestamptz{Time: cutoff, Valid: true})
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgRowIndex(i int) pgtype.Int4 {
	if i < 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func dbAuditLogToEntry(row db.AuditLog) *AuditEntry {
	entry := &AuditEntry{
		ID:        uuidToString(row.ID),
		Action:    AuditAction(row.Action),
		Severity:  AuditSeverity(row.Severity),
		SheetKey:  row.SheetKey,
		Outcome:   row.Outcome,
		CreatedAt: row.CreatedAt.Time,
	}

	if row.RecordID.Valid {
		entry.RecordID = row.RecordID.String
	}
	if row.RowIndex.Valid {
		idx := int(row.RowIndex.Int32)
		entry.RowIndex = &idx
	}
	if row.IpAddress.Valid {
		entry.IPAddress = row.IpAddress.String
	}
	if row.UserAgent.Valid {
		entry.UserAgent = row.UserAgent.String
	}
	if row.SessionID.Valid {
		entry.SessionID = row.SessionID.String
	}
	if row.RowData != nil {
		_ = json.Unmarshal(row.RowData, &entry.RowData)
	}
	if row.Reason.Valid {
		entry.Reason = row.Reason.String
	}

	return entry
}
