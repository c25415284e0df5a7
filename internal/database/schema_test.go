package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type execRecorder struct {
	sql []string
	err error
}

func (e *execRecorder) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	return pgconn.CommandTag{}, e.err
}

func (e *execRecorder) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (e *execRecorder) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestEnsureSchema(t *testing.T) {
	rec := &execRecorder{}
	if err := EnsureSchema(context.Background(), rec); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(rec.sql) != 1 {
		t.Fatalf("expected one statement batch, got %d", len(rec.sql))
	}
	if !strings.Contains(rec.sql[0], "CREATE TABLE IF NOT EXISTS audit_log") {
		t.Errorf("schema does not create audit_log:\n%s", rec.sql[0])
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	rec := &execRecorder{err: errors.New("permission denied")}
	err := EnsureSchema(context.Background(), rec)
	if err == nil || !strings.Contains(err.Error(), "ensure schema: permission denied") {
		t.Fatalf("EnsureSchema error = %v", err)
	}
}

func TestPurgeAuditLogBefore_RowsAffected(t *testing.T) {
	q := New(&tagExec{tag: pgconn.NewCommandTag("DELETE 12")})
	n, err := q.PurgeAuditLogBefore(context.Background(), pgtype.Timestamptz{Time: time.Now(), Valid: true})
	if err != nil {
		t.Fatalf("PurgeAuditLogBefore: %v", err)
	}
	if n != 12 {
		t.Errorf("rows affected = %d, want 12", n)
	}
}

type tagExec struct {
	execRecorder
	tag pgconn.CommandTag
}

func (e *tagExec) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return e.tag, nil
}
