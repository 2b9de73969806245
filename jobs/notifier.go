package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/ausbildung/nachweis/internal/records"
)

// StatusEnqueuer schedules status notifications.
type StatusEnqueuer interface {
	EnqueueStatusNotification(ctx context.Context, payload StatusNotificationPayload) (*asynq.TaskInfo, error)
}

// RecordNotifier forwards record status transitions to the queue.
type RecordNotifier struct {
	queue StatusEnqueuer
}

// NewRecordNotifier wraps an enqueuer as a records.Notifier.
func NewRecordNotifier(queue StatusEnqueuer) *RecordNotifier {
	return &RecordNotifier{queue: queue}
}

// StatusChanged implements records.Notifier.
func (n *RecordNotifier) StatusChanged(ctx context.Context, change records.StatusChange) error {
	payload := StatusNotificationPayload{
		RecordID: change.RecordID,
		OwnerID:  change.OwnerID,
		Number:   change.Number,
		From:     string(change.From),
		To:       string(change.To),
		Actor:    change.Actor,
	}
	if change.Comment != nil {
		payload.Comment = *change.Comment
	}
	_, err := n.queue.EnqueueStatusNotification(ctx, payload)
	return err
}
