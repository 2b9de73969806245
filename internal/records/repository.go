package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ausbildung/nachweis/internal/platform/db"
	"github.com/ausbildung/nachweis/internal/shared"
)

// Repository defines the interface for record persistence.
type Repository interface {
	// Read operations
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, int, error)
	ExistsByNumber(ctx context.Context, ownerID uuid.UUID, number int) (bool, error)
	MaxNumber(ctx context.Context, ownerID uuid.UUID) (int, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comment *string) error
	ReplaceActivities(ctx context.Context, id uuid.UUID, activities []Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordAudit(ctx context.Context, event AuditEvent) error
}

const numberConstraint = "uq_nachweise_owner_number"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var recordColumns = []string{
	"id", "owner_id", "owner_name", "trainer_id", "number", "period_start", "period_end",
	"status", "comment", "signature_owner", "signature_trainer", "created_at", "updated_at",
}

var sortColumns = map[string]string{
	"":            "period_start",
	"periodStart": "period_start",
	"periodEnd":   "period_end",
	"number":      "number",
	"status":      "status",
	"createdAt":   "created_at",
}

// repository implements Repository on a pgx pool.
type repository struct {
	conn db.TxBeginner
}

// NewRepository creates a new repository.
func NewRepository(conn db.TxBeginner) Repository {
	return &repository{conn: conn}
}

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec        Record
		start, end time.Time
		status     string
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.OwnerName, &rec.TrainerID, &rec.Number, &start, &end,
		&status, &rec.Comment, &rec.Signatures.Owner, &rec.Signatures.Trainer, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.PeriodStart = Date{start}
	rec.PeriodEnd = Date{end}
	rec.Status = Status(status)
	return &rec, nil
}

// GetByID retrieves a record with its activities.
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `SELECT ` + strings.Join(recordColumns, ", ") + ` FROM nachweise WHERE id = $1`
	rec, err := scanRecord(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: get %s: %w", id, err)
	}
	activities, err := r.getActivities(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Activities = activities
	return rec, nil
}

func (r *repository) getActivities(ctx context.Context, recordID uuid.UUID) ([]Activity, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT day, slot, section, description, hours
		FROM nachweis_activities
		WHERE nachweis_id = $1`, recordID)
	if err != nil {
		return nil, fmt.Errorf("records: activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var day string
		if err := rows.Scan(&day, &a.Slot, &a.Section, &a.Description, &a.Hours); err != nil {
			return nil, err
		}
		a.Day = Weekday(day)
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortActivities(activities)
	return activities, nil
}

func sortActivities(activities []Activity) {
	order := make(map[Weekday]int, len(Weekdays))
	for i, d := range Weekdays {
		order[d] = i
	}
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].Day != activities[j].Day {
			return order[activities[i].Day] < order[activities[j].Day]
		}
		return activities[i].Slot < activities[j].Slot
	})
}

func listWhere(filter ListFilter) squirrel.And {
	where := squirrel.And{}
	if filter.OwnerID != nil {
		where = append(where, squirrel.Eq{"owner_id": filter.OwnerID.String()})
	}
	if filter.TrainerID != nil {
		where = append(where, squirrel.Eq{"trainer_id": filter.TrainerID.String()})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}
	return where
}

// List returns one page of records without activities and the total count.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		return nil, 0, shared.Validationf("unsupported sortBy %q", filter.SortBy)
	}
	dir := "ASC"
	switch strings.ToLower(filter.SortDir) {
	case "", "asc":
	case "desc":
		dir = "DESC"
	default:
		return nil, 0, shared.Validationf("unsupported sortDir %q", filter.SortDir)
	}
	page, size := shared.ClampPage(filter.Page, filter.Size)
	where := listWhere(filter)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("nachweise").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("records: count: %w", err)
	}

	query, args, err := psql.Select(recordColumns...).
		From("nachweise").
		Where(where).
		OrderBy(column+" "+dir, "id ASC").
		Limit(uint64(size)).
		Offset(uint64(page * size)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()

	result := make([]Record, 0, size)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *rec)
	}
	return result, total, rows.Err()
}

// ExistsByNumber checks whether the owner already uses number.
func (r *repository) ExistsByNumber(ctx context.Context, ownerID uuid.UUID, number int) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM nachweise WHERE owner_id = $1 AND number = $2)`,
		ownerID, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("records: exists by number: %w", err)
	}
	return exists, nil
}

// MaxNumber returns the highest number used by the owner, or 0.
func (r *repository) MaxNumber(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var max int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM nachweise WHERE owner_id = $1`, ownerID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("records: max number: %w", err)
	}
	return max, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == numberConstraint {
		return ErrNumberTaken
	}
	return shared.MapPgError(err)
}

// Insert creates the record row and its activities.
func (t *txRepository) Insert(ctx context.Context, rec Record) error {
	query, args, err := psql.Insert("nachweise").
		Columns(recordColumns...).
		Values(
			rec.ID, rec.OwnerID, rec.OwnerName, rec.TrainerID, rec.Number, rec.PeriodStart.Time, rec.PeriodEnd.Time,
			string(rec.Status), rec.Comment, rec.Signatures.Owner, rec.Signatures.Trainer, rec.CreatedAt, rec.UpdatedAt,
		).ToSql()
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err)
	}
	return t.insertActivities(ctx, rec.ID, rec.Activities)
}

func (t *txRepository) insertActivities(ctx context.Context, id uuid.UUID, activities []Activity) error {
	if len(activities) == 0 {
		return nil
	}
	insert := psql.Insert("nachweis_activities").
		Columns("nachweis_id", "day", "slot", "section", "description", "hours")
	for _, a := range activities {
		insert = insert.Values(id, string(a.Day), a.Slot, a.Section, a.Description, a.Hours)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update writes the owner editable and review fields of rec.
func (t *txRepository) Update(ctx context.Context, rec Record) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE nachweise
		SET number = $2, period_start = $3, period_end = $4, trainer_id = $5, status = $6,
		    comment = $7, signature_owner = $8, signature_trainer = $9, updated_at = NOW()
		WHERE id = $1`,
		rec.ID, rec.Number, rec.PeriodStart.Time, rec.PeriodEnd.Time, rec.TrainerID, string(rec.Status),
		rec.Comment, rec.Signatures.Owner, rec.Signatures.Trainer,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the status and, when comment is non-nil, replaces the comment.
func (t *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, comment *string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE nachweise
		SET status = $2, comment = COALESCE($3, comment), updated_at = NOW()
		WHERE id = $1`, id, string(status), comment)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceActivities swaps the full activity set of a record.
func (t *txRepository) ReplaceActivities(ctx context.Context, id uuid.UUID, activities []Activity) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM nachweis_activities WHERE nachweis_id = $1`, id); err != nil {
		return mapWriteError(err)
	}
	return t.insertActivities(ctx, id, activities)
}

// Delete removes a record; activities cascade.
func (t *txRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM nachweise WHERE id = $1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAudit appends an audit row inside the transaction.
func (t *txRepository) RecordAudit(ctx context.Context, event AuditEvent) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, shared.AuditLog{
		SubjectID: event.RecordID,
		Action:    event.Action,
		Actor:     event.Actor,
		Details:   event.Details,
	})
}
