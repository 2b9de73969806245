package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in nachweis_audit_logs.
type AuditLog struct {
	SubjectID uuid.UUID
	Action    string
	Actor     string
	Details   map[string]any
	At        time.Time
}

// AuditLogger writes records into nachweis_audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger. Pass a transaction to keep the
// audit row atomic with the mutation it describes.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.SubjectID == uuid.Nil {
		return errors.New("audit log requires action and subject")
	}
	var details []byte
	if len(log.Details) > 0 {
		var err error
		if details, err = json.Marshal(log.Details); err != nil {
			return err
		}
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := l.db.Exec(ctx,
		`INSERT INTO nachweis_audit_logs (nachweis_id, action, performed_by, details, performed_at) VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		log.SubjectID, log.Action, log.Actor, details, at)
	return err
}
