// Package notifications stores in-app notifications and serves them to their recipient.
package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for display.
type Type string

const (
	TypeInfo    Type = "INFO"
	TypeSuccess Type = "SUCCESS"
	TypeWarning Type = "WARNING"
	TypeError   Type = "ERROR"
)

// Status is the read state of a notification.
type Status string

const (
	StatusUnread Status = "UNREAD"
	StatusRead   Status = "READ"
)

// Notification is one message for one recipient.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	RecipientID uuid.UUID  `json:"recipientId"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	RecordID    *uuid.UUID `json:"recordId,omitempty"`
	ActionURL   *string    `json:"actionUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// ListFilter selects the notifications of one recipient.
type ListFilter struct {
	RecipientID uuid.UUID
	UnreadOnly  bool
	Page        int
	Size        int
}

// Page is a paginated notification listing.
type Page struct {
	Content       []Notification `json:"content"`
	TotalElements int            `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
}

// CreateInput describes a notification to store.
type CreateInput struct {
	RecipientID uuid.UUID  `validate:"required"`
	Title       string     `validate:"required,max=200"`
	Message     string     `validate:"max=2000"`
	Type        Type       `validate:"required,oneof=INFO SUCCESS WARNING ERROR"`
	RecordID    *uuid.UUID `validate:"omitempty"`
	ActionURL   *string    `validate:"omitempty,max=500"`
}
