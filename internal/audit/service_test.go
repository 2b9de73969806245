package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	records    []json.RawMessage
	roles      []json.RawMessage
	forRecord  []json.RawMessage
	err        error
	lastLimit  int
	lastOffset int
}

func (s *stubRepository) RecordAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error) {
	s.lastLimit, s.lastOffset = limit, offset
	return s.records, len(s.records) + 40, s.err
}

func (s *stubRepository) RecordAuditsFor(ctx context.Context, recordID uuid.UUID) ([]json.RawMessage, error) {
	return s.forRecord, s.err
}

func (s *stubRepository) RoleAudits(ctx context.Context, limit, offset int) ([]json.RawMessage, int, error) {
	return s.roles, len(s.roles), s.err
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ============================================================================
// Service
// ============================================================================

func TestServiceRecordAuditsPaging(t *testing.T) {
	repo := &stubRepository{records: []json.RawMessage{
		raw(t, map[string]any{"id": 1, "nachweisId": "n-1", "action": "CREATED", "performedBy": "azubi", "performedAt": "2025-03-01T10:00:00Z"}),
	}}
	svc := NewService(repo)

	page, err := svc.RecordAudits(context.Background(), 2, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)
	assert.Equal(t, 200, repo.lastOffset)
	assert.Equal(t, 41, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "CREATED", page.Items[0].Action)
	assert.Equal(t, "n-1", page.Items[0].SubjectID)
}

func TestServiceRecentMergesSources(t *testing.T) {
	repo := &stubRepository{
		records: []json.RawMessage{
			raw(t, map[string]any{"id": 1, "action": "CREATED", "performedAt": "2025-03-01T10:00:00Z"}),
			raw(t, map[string]any{"id": 2, "action": "APPROVED", "performedAt": "2025-03-03T10:00:00Z"}),
		},
		roles: []json.RawMessage{
			raw(t, map[string]any{"id": 9, "action": "GRANTED AUSBILDER", "changed_at": "2025-03-02T10:00:00Z"}),
		},
	}
	svc := NewService(repo)

	got, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "APPROVED", got[0].Action)
	assert.Equal(t, "GRANTED AUSBILDER", got[1].Action)
	assert.Equal(t, "CREATED", got[2].Action)

	got, err = svc.Recent(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestServicePropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&stubRepository{err: boom})

	_, err := svc.RecordAudits(context.Background(), 0, 10)
	assert.ErrorIs(t, err, boom)
	_, err = svc.RoleAudits(context.Background(), 0, 10)
	assert.ErrorIs(t, err, boom)
	_, err = svc.Recent(context.Background(), 3)
	assert.ErrorIs(t, err, boom)

	_, err = NewService(nil).Export(context.Background())
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	entries := NormalizePayload([]any{
		map[string]any{"id": "1", "nachweisId": "n-1", "action": "rejected, with comma", "performedBy": "meister", "performedAt": "2025-03-01T10:00:00Z"},
	})
	out, err := WriteCSV(entries)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,subject_id,action,actor,occurred_at", lines[0])
	assert.Equal(t, `1,n-1,"rejected, with comma",meister,2025-03-01T10:00:00Z`, lines[1])
}

// ============================================================================
// Repository
// ============================================================================

func TestRepositoryRecordAudits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM nachweis_audit_logs`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`(?s)SELECT row_to_json\(t\) FROM .*FROM nachweis_audit_logs ORDER BY performed_at DESC`).
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id":2,"nachweisId":"n-1","action":"UPDATED"}`)).
			AddRow([]byte(`{"id":1,"nachweisId":"n-1","action":"CREATED"}`)))

	rows, total, err := NewRepository(mock).RecordAudits(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "UPDATED", Normalize(rows[0]).Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRecordAuditsFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`WHERE nachweis_id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"row_to_json"}))

	rows, err := NewRepository(mock).RecordAuditsFor(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRoleAuditsCountError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM role_audits`).WillReturnError(errors.New("boom"))

	_, _, err = NewRepository(mock).RoleAudits(context.Background(), 10, 0)
	assert.ErrorContains(t, err, "count role_audits")
	require.NoError(t, mock.ExpectationsWereMet())
}
