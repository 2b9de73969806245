package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/ausbildung/nachweis/internal/jobs"
	"github.com/ausbildung/nachweis/internal/notifications"
)

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, in notifications.CreateInput) (notifications.Notification, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// MailEnqueuer schedules outgoing mail.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// StatusNotificationJob turns a status transition into a notification and a mail.
type StatusNotificationJob struct {
	Store   NotificationStore
	Mail    MailEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskTypeStatusNotification tasks.
func (j *StatusNotificationJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("status notification: handler not configured")
	}
	var payload StatusNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OwnerID == uuid.Nil || payload.RecordID == uuid.Nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeStatusNotification)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskTypeStatusNotification).With(
		slog.String("record_id", payload.RecordID.String()),
		slog.String("status", payload.To))

	input := notifications.ForStatusChange(notifications.StatusChange{
		RecipientID: payload.OwnerID,
		RecordID:    payload.RecordID,
		Number:      payload.Number,
		Status:      payload.To,
		Comment:     payload.Comment,
		Actor:       payload.Actor,
	})
	n, err := j.Store.Create(ctx, input)
	if err != nil {
		logger.Error("persist notification", slog.Any("error", err))
		return err
	}
	j.Metrics.AddNotification(string(n.Type))

	if j.Mail != nil {
		mail := SendEmailPayload{
			To:      payload.OwnerID.String(),
			Subject: n.Title,
			Body:    fmt.Sprintf("%s\n\nStatus: %s -> %s", n.Message, payload.From, payload.To),
		}
		if _, err := j.Mail.EnqueueSendEmail(ctx, mail); err != nil {
			logger.Warn("enqueue mail", slog.Any("error", err))
		}
	}
	logger.Info("status notification stored", slog.String("notification_id", n.ID.String()))
	return nil
}

// NotificationCleanupJob removes notifications past their retention.
type NotificationCleanupJob struct {
	Store     NotificationStore
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskTypeNotificationCleanup tasks.
func (j *NotificationCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("notification cleanup: handler not configured")
	}
	var payload NotificationCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.Retention
	if payload.Retention > 0 {
		retention = payload.Retention
	}
	tracker := j.Metrics.Track(TaskTypeNotificationCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		jobLogger(j.Logger, TaskTypeNotificationCleanup).Error("cleanup notifications", slog.Any("error", err))
		return err
	}
	j.Metrics.AddCleaned(removed)
	return nil
}
