package notifications

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ausbildung/nachweis/internal/platform/db"
	"github.com/ausbildung/nachweis/internal/shared"
)

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	List(ctx context.Context, filter ListFilter) ([]Notification, int, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const notificationColumns = "id, recipient_id, title, message, type, status, nachweis_id, action_url, created_at, read_at"

type repository struct {
	conn db.Querier
}

// NewRepository creates a pgx backed repository.
func NewRepository(conn db.Querier) Repository {
	return &repository{conn: conn}
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	var typ, status string
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &typ, &status,
		&n.RecordID, &n.ActionURL, &n.CreatedAt, &n.ReadAt); err != nil {
		return Notification{}, err
	}
	n.Type = Type(typ)
	n.Status = Status(status)
	return n, nil
}

func (r *repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, title, message, type, status, nachweis_id, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.RecipientID, n.Title, n.Message, string(n.Type), string(n.Status), n.RecordID, n.ActionURL, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notifications: insert: %w", shared.MapPgError(err))
	}
	return nil
}

func listWhere(filter ListFilter) sq.And {
	where := sq.And{sq.Eq{"recipient_id": filter.RecipientID.String()}}
	if filter.UnreadOnly {
		where = append(where, sq.Eq{"status": string(StatusUnread)})
	}
	return where
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Notification, int, error) {
	countSQL, countArgs, err := psql.Select("COUNT(*)").From("notifications").Where(listWhere(filter)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("notifications: count: %w", err)
	}

	query, args, err := psql.Select(notificationColumns).From("notifications").
		Where(listWhere(filter)).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(filter.Size)).
		Offset(uint64(filter.Page * filter.Size)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()
	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *repository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND status = 'UNREAD'`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notifications: unread count: %w", err)
	}
	return count, nil
}

func (r *repository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE notifications SET status = 'READ', read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2`, id, recipientID, at)
	if err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE notifications SET status = 'READ', read_at = $2
		WHERE recipient_id = $1 AND status = 'UNREAD'`, recipientID, at)
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("notifications: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("notifications: cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}
