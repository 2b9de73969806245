package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeStatusNotification notifies a record owner about a status transition.
	TaskTypeStatusNotification = "notification:status"
	// TaskTypeNotificationCleanup removes notifications past their retention.
	TaskTypeNotificationCleanup = "notifications:cleanup"
	// TaskTypeIdempotencyCleanup prunes processed request keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// StatusNotificationPayload carries one record status transition.
type StatusNotificationPayload struct {
	RecordID uuid.UUID `json:"recordId"`
	OwnerID  uuid.UUID `json:"ownerId"`
	Number   int       `json:"number"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Comment  string    `json:"comment,omitempty"`
	Actor    string    `json:"actor"`
}

// NotificationCleanupPayload overrides the configured retention when set.
type NotificationCleanupPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// IdempotencyCleanupPayload overrides the configured key retention when set.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

func newTask(typ string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, opts...), nil
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	return newTask(TaskTypeSendEmail, payload, asynq.MaxRetry(5))
}

// NewStatusNotificationTask constructs a status notification task.
func NewStatusNotificationTask(payload StatusNotificationPayload) (*asynq.Task, error) {
	return newTask(TaskTypeStatusNotification, payload, asynq.MaxRetry(3))
}

// NewNotificationCleanupTask constructs the retention task.
func NewNotificationCleanupTask(payload NotificationCleanupPayload) (*asynq.Task, error) {
	return newTask(TaskTypeNotificationCleanup, payload, asynq.MaxRetry(1))
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	return newTask(TaskTypeIdempotencyCleanup, payload, asynq.MaxRetry(1))
}
