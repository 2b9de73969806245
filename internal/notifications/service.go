package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service manages the notifications of a recipient.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and stores a new unread notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (Notification, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return Notification{}, shared.Validationf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return Notification{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	n := Notification{
		ID:          uuid.New(),
		RecipientID: in.RecipientID,
		Title:       in.Title,
		Message:     in.Message,
		Type:        in.Type,
		Status:      StatusUnread,
		RecordID:    in.RecordID,
		ActionURL:   in.ActionURL,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// List returns one page of the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, p shared.Principal, unreadOnly bool, page, size int) (Page, error) {
	page, size = shared.ClampPage(page, size)
	items, total, err := s.repo.List(ctx, ListFilter{RecipientID: p.UserID, UnreadOnly: unreadOnly, Page: page, Size: size})
	if err != nil {
		return Page{}, err
	}
	meta := shared.NewPagination(page, size, total)
	return Page{
		Content:       items,
		TotalElements: meta.Total,
		TotalPages:    meta.TotalPages,
		Page:          meta.Page,
		Size:          meta.Size,
	}, nil
}

// UnreadCount counts the recipient's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, p shared.Principal) (int, error) {
	return s.repo.UnreadCount(ctx, p.UserID)
}

// MarkRead marks one notification of the principal as read.
func (s *Service) MarkRead(ctx context.Context, p shared.Principal, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, p.UserID, s.now())
}

// MarkAllRead marks every unread notification of the principal as read.
func (s *Service) MarkAllRead(ctx context.Context, p shared.Principal) (int64, error) {
	return s.repo.MarkAllRead(ctx, p.UserID, s.now())
}

// Delete removes one notification of the principal.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, p.UserID)
}

// Cleanup removes notifications older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, shared.Validationf("retention must be positive")
	}
	removed, err := s.repo.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	s.logger.Info("notifications cleaned up", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return removed, nil
}

// StatusChange is the input of a record status notification.
type StatusChange struct {
	RecipientID uuid.UUID
	RecordID    uuid.UUID
	Number      int
	Status      string
	Comment     string
	Actor       string
}

// ForStatusChange derives the notification for a record status transition.
func ForStatusChange(c StatusChange) CreateInput {
	in := CreateInput{
		RecipientID: c.RecipientID,
		RecordID:    &c.RecordID,
		Type:        TypeInfo,
		Title:       fmt.Sprintf("Nachweis Nr. %d in Bearbeitung", c.Number),
	}
	switch c.Status {
	case "ANGENOMMEN":
		in.Type = TypeSuccess
		in.Title = fmt.Sprintf("Nachweis Nr. %d angenommen", c.Number)
	case "ABGELEHNT":
		in.Type = TypeWarning
		in.Title = fmt.Sprintf("Nachweis Nr. %d abgelehnt", c.Number)
	}
	msg := fmt.Sprintf("Status geändert von %s", c.Actor)
	if strings.TrimSpace(c.Comment) != "" {
		msg += ": " + c.Comment
	}
	in.Message = msg
	url := "/records/" + c.RecordID.String()
	in.ActionURL = &url
	return in
}
