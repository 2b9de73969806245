package records

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/shared"
)

// ============================================================================
// IN-MEMORY REPOSITORY
// ============================================================================

type mockRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	audits  []AuditEvent
	inserts int

	// insertErr is returned by Insert, e.g. to simulate a unique violation race.
	insertErr error
	// getErr forces GetByID to fail for specific ids.
	getErr map[uuid.UUID]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: map[uuid.UUID]Record{}, getErr: map[uuid.UUID]error{}}
}

func (m *mockRepository) seed(recs ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.records[r.ID] = r
	}
}

func (m *mockRepository) stored(id uuid.UUID) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *mockRepository) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

func cloneRecord(r Record) *Record {
	c := r
	c.Activities = append([]Activity(nil), r.Activities...)
	return &c
}

func (m *mockRepository) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[id]; err != nil {
		return nil, err
	}
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *mockRepository) List(_ context.Context, filter ListFilter) ([]Record, int, error) {
	if _, ok := sortColumns[filter.SortBy]; !ok {
		return nil, 0, shared.Validationf("unsupported sortBy %q", filter.SortBy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Record
	for _, r := range m.records {
		if filter.OwnerID != nil && r.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.TrainerID != nil && r.TrainerID != *filter.TrainerID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		r.Activities = nil
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	page, size := shared.ClampPage(filter.Page, filter.Size)
	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *mockRepository) ExistsByNumber(_ context.Context, ownerID uuid.UUID, number int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.OwnerID == ownerID && r.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) MaxNumber(_ context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.records {
		if r.OwnerID == ownerID && r.Number > max {
			max = r.Number
		}
	}
	return max, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTx{repo: m})
}

type mockTx struct {
	repo *mockRepository
}

func (t *mockTx) Insert(_ context.Context, rec Record) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, r := range m.records {
		if r.OwnerID == rec.OwnerID && r.Number == rec.Number {
			return ErrNumberTaken
		}
	}
	m.records[rec.ID] = *cloneRecord(rec)
	m.inserts++
	return nil
}

func (t *mockTx) Update(_ context.Context, rec Record) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.Activities = cur.Activities
	m.records[rec.ID] = rec
	return nil
}

func (t *mockTx) UpdateStatus(_ context.Context, id uuid.UUID, status Status, comment *string) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	cur.Status = status
	if comment != nil {
		cur.Comment = comment
	}
	m.records[id] = cur
	return nil
}

func (t *mockTx) ReplaceActivities(_ context.Context, id uuid.UUID, activities []Activity) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	cur.Activities = append([]Activity(nil), activities...)
	m.records[id] = cur
	return nil
}

func (t *mockTx) Delete(_ context.Context, id uuid.UUID) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (t *mockTx) RecordAudit(_ context.Context, event AuditEvent) error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.Action == "" {
		return errors.New("audit requires action")
	}
	m.audits = append(m.audits, event)
	return nil
}

// ============================================================================
// COLLABORATOR STUBS
// ============================================================================

type recordingNotifier struct {
	mu      sync.Mutex
	changes []StatusChange
	err     error
}

func (n *recordingNotifier) StatusChanged(_ context.Context, change StatusChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

type stubConverter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubConverter) RenderHTML(_ context.Context, html string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.4 " + html[:10]), nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	operation string
	succeeded int
	failed    int
}

func (m *recordingMetrics) ObserveBatch(operation string, succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operation, m.succeeded, m.failed = operation, succeeded, failed
}
