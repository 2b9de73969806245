package records

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ausbildung/nachweis/internal/shared"
)

func TestBatchSetStatus_ExistingAndMissing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	rec := newRecord(azubi, 1, StatusInBearbeitung)
	repo.seed(rec)
	missing := uuid.New()

	res, err := svc.BatchSetStatus(context.Background(), trainer, []uuid.UUID{rec.ID, missing}, StatusAngenommen, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SucceededCount())
	assert.Equal(t, 1, res.FailedCount())
	assert.Equal(t, []uuid.UUID{rec.ID}, res.SucceededIDs)
	assert.Equal(t, []uuid.UUID{missing}, res.FailedIDs)
	assert.Contains(t, res.Detail[missing], "not found")
	assert.True(t, res.Partial())
	assert.Equal(t, "1 succeeded, 1 failed", res.Message())
	assert.ErrorIs(t, res.Err(), shared.ErrPartial)

	stored, _ := repo.stored(rec.ID)
	assert.Equal(t, StatusAngenommen, stored.Status)
}

func TestBatch_CountsAlwaysSumToInput(t *testing.T) {
	repo := newMockRepository()
	metrics := &recordingMetrics{}
	svc := NewService(repo, ServiceConfig{Metrics: metrics, Concurrency: 3})

	var ids []uuid.UUID
	for i := 1; i <= 20; i++ {
		owner := azubi
		if i%3 == 0 {
			owner = otherAzubi
		}
		rec := newRecord(owner, i, StatusInBearbeitung)
		if i%4 == 0 {
			rec.TrainerID = otherTrainer.UserID
		}
		repo.seed(rec)
		ids = append(ids, rec.ID)
	}
	ids = append(ids, uuid.New(), uuid.New(), ids[0], ids[1])
	repo.getErr[ids[5]] = errors.New("connection reset")

	ctx := context.Background()
	cases := []struct {
		name string
		run  func() (BatchResult, error)
	}{
		{"approve", func() (BatchResult, error) { return svc.BatchApprove(ctx, trainer, ids, nil) }},
		{"reject", func() (BatchResult, error) { return svc.BatchReject(ctx, trainer, ids, nil) }},
		{"delete", func() (BatchResult, error) { return svc.BatchDelete(ctx, azubi, ids) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tc.run()
			require.NoError(t, err)
			assert.Equal(t, len(ids), res.SucceededCount()+res.FailedCount())
			assert.Equal(t, res.SucceededCount(), metrics.succeeded)
			assert.Equal(t, res.FailedCount(), metrics.failed)
			assert.Equal(t, "internal error", res.Detail[ids[5]])
		})
	}
}

func TestBatch_DuplicateIDs(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	rec := newRecord(azubi, 1, StatusInBearbeitung)
	repo.seed(rec)

	res, err := svc.BatchApprove(context.Background(), admin, []uuid.UUID{rec.ID, rec.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SucceededCount())
	assert.Equal(t, 1, res.FailedCount())
	assert.Equal(t, reasonDuplicateID, res.Detail[rec.ID])
	assert.Equal(t, 1, notifier.count(), "a repeated id is processed once")
}

func TestBatch_RepeatedMissingIDKeepsBothReasons(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := uuid.New()

	res, err := svc.BatchApprove(context.Background(), admin, []uuid.UUID{missing, missing}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SucceededCount())
	assert.Equal(t, []uuid.UUID{missing, missing}, res.FailedIDs)
	require.Contains(t, res.Detail, missing)
	assert.Contains(t, res.Detail[missing], "not found")
	assert.Contains(t, res.Detail[missing], reasonDuplicateID)
}

func TestBatch_CallLevelErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.BatchSetStatus(ctx, trainer, nil, StatusAngenommen, nil)
	assert.ErrorIs(t, err, ErrEmptyIDs)

	_, err = svc.BatchSetStatus(ctx, azubi, []uuid.UUID{uuid.New()}, StatusAngenommen, nil)
	assert.Equal(t, shared.CodeForbidden, shared.CodeOf(err))

	_, err = svc.BatchSetStatus(ctx, admin, []uuid.UUID{uuid.New()}, "MAYBE", nil)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))

	_, err = svc.BatchDelete(ctx, azubi, []uuid.UUID{})
	assert.ErrorIs(t, err, ErrEmptyIDs)
}

func TestBatchDelete_ForbiddenItemsFail(t *testing.T) {
	svc, repo, _ := newTestService(t)
	mine := newRecord(azubi, 1, StatusInBearbeitung)
	theirs := newRecord(otherAzubi, 1, StatusInBearbeitung)
	repo.seed(mine, theirs)

	res, err := svc.BatchDelete(context.Background(), azubi, []uuid.UUID{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{mine.ID}, res.SucceededIDs)
	assert.Equal(t, []uuid.UUID{theirs.ID}, res.FailedIDs)
	assert.Contains(t, res.Detail[theirs.ID], "forbidden")

	_, ok := repo.stored(theirs.ID)
	assert.True(t, ok)
}

func TestBatchResult_NoFailures(t *testing.T) {
	res := BatchResult{SucceededIDs: []uuid.UUID{uuid.New()}}
	assert.False(t, res.Partial())
	assert.NoError(t, res.Err())
	assert.Equal(t, "1 succeeded, 0 failed", res.Message())
}

// ============================================================================
// EXPORT
// ============================================================================

func readZip(t *testing.T, archive []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = body
	}
	return files
}

func TestBatchExport(t *testing.T) {
	repo := newMockRepository()
	conv := &stubConverter{}
	svc := NewService(repo, ServiceConfig{Converter: conv})
	a := newRecord(azubi, 1, StatusAngenommen)
	b := newRecord(azubi, 2, StatusInBearbeitung)
	repo.seed(a, b)

	archive, err := svc.BatchExport(context.Background(), azubi, []uuid.UUID{a.ID, b.ID, a.ID})
	require.NoError(t, err)

	files := readZip(t, archive)
	require.Len(t, files, 3)
	assert.Contains(t, files, ExportFileName(a))
	assert.Contains(t, files, ExportFileName(b))
	assert.Equal(t, 2, conv.calls)

	book, err := excelize.OpenReader(bytes.NewReader(files["overview.xlsx"]))
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows(overviewSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Nummer", "Von", "Bis", "Status", "Stunden"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2025-03-03", rows[1][1])
	assert.Equal(t, "ANGENOMMEN", rows[1][3])
	assert.Equal(t, "8", rows[1][4])
}

func TestBatchExport_AllOrNothing(t *testing.T) {
	repo := newMockRepository()
	conv := &stubConverter{}
	svc := NewService(repo, ServiceConfig{Converter: conv})
	mine := newRecord(azubi, 1, StatusAngenommen)
	theirs := newRecord(otherAzubi, 1, StatusAngenommen)
	repo.seed(mine, theirs)
	ctx := context.Background()

	archive, err := svc.BatchExport(ctx, azubi, []uuid.UUID{mine.ID, theirs.ID})
	require.Error(t, err)
	assert.Nil(t, archive)
	assert.Equal(t, shared.CodeForbidden, shared.CodeOf(err))

	archive, err = svc.BatchExport(ctx, admin, []uuid.UUID{mine.ID, uuid.New()})
	assert.Nil(t, archive)
	assert.Equal(t, shared.CodeNotFound, shared.CodeOf(err))

	conv.err = errors.New("gotenberg unavailable")
	archive, err = svc.BatchExport(ctx, admin, []uuid.UUID{mine.ID})
	assert.Nil(t, archive)
	assert.Equal(t, shared.CodeTransport, shared.CodeOf(err))

	_, err = svc.BatchExport(ctx, admin, nil)
	assert.ErrorIs(t, err, ErrEmptyIDs)
}
