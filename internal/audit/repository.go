package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/platform/db"
)

// Repository membaca baris audit sebagai JSON mentah.
type Repository interface {
	RecordAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error)
	RecordAuditsFor(ctx context.Context, recordID uuid.UUID) ([]json.RawMessage, error)
	RoleAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error)
}

const recordAuditSelect = `
	SELECT id, nachweis_id AS "nachweisId", action, performed_by AS "performedBy",
	       performed_at AS "performedAt", details
	FROM nachweis_audit_logs`

const roleAuditSelect = `
	SELECT id, target_username AS "targetUsername", change || ' ' || role AS action,
	       changed_by AS "changedBy", changed_at
	FROM role_audits`

type repository struct {
	conn db.Querier
}

// NewRepository membuat repository audit di atas pool pgx.
func NewRepository(conn db.Querier) Repository {
	return &repository{conn: conn}
}

func (r *repository) count(ctx context.Context, table string) (int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total); err != nil {
		return 0, fmt.Errorf("audit: count %s: %w", table, err)
	}
	return total, nil
}

func (r *repository) rawRows(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := r.conn.Query(ctx, `SELECT row_to_json(t) FROM (`+query+`) t`, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()
	out := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

// RecordAudits mengembalikan satu halaman audit Nachweis, terbaru dulu.
func (r *repository) RecordAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error) {
	total, err := r.count(ctx, "nachweis_audit_logs")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.rawRows(ctx, recordAuditSelect+` ORDER BY performed_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	return rows, total, err
}

// RecordAuditsFor mengembalikan seluruh audit satu Nachweis.
func (r *repository) RecordAuditsFor(ctx context.Context, recordID uuid.UUID) ([]json.RawMessage, error) {
	return r.rawRows(ctx, recordAuditSelect+` WHERE nachweis_id = $1 ORDER BY performed_at DESC, id DESC`, recordID)
}

// RoleAudits mengembalikan satu halaman audit peran.
func (r *repository) RoleAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error) {
	total, err := r.count(ctx, "role_audits")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.rawRows(ctx, roleAuditSelect+` ORDER BY changed_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	return rows, total, err
}
