package records

import (
	"github.com/google/uuid"
)

// CreateRequest represents a record submission by its owner.
type CreateRequest struct {
	Number      int        `json:"number" validate:"required,gt=0,max=2147483647"`
	PeriodStart Date       `json:"periodStart"`
	PeriodEnd   Date       `json:"periodEnd"`
	TrainerID   uuid.UUID  `json:"trainerId" validate:"required"`
	Activities  []Activity `json:"activities" validate:"omitempty,max=31"`
	Signatures  Signatures `json:"signatures"`
}

// UpdateRequest is a partial update. Activities replace the stored set wholesale.
type UpdateRequest struct {
	Number      *int        `json:"number,omitempty" validate:"omitempty,gt=0,max=2147483647"`
	PeriodStart *Date       `json:"periodStart,omitempty"`
	PeriodEnd   *Date       `json:"periodEnd,omitempty"`
	TrainerID   *uuid.UUID  `json:"trainerId,omitempty"`
	Activities  *[]Activity `json:"activities,omitempty" validate:"omitempty,max=31"`
	Signatures  *Signatures `json:"signatures,omitempty"`
	Status      *Status     `json:"status,omitempty"`
	Comment     *string     `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// touchesOwnerFields reports whether the patch changes owner-editable content.
func (r UpdateRequest) touchesOwnerFields() bool {
	return r.Number != nil || r.PeriodStart != nil || r.PeriodEnd != nil ||
		r.TrainerID != nil || r.Activities != nil || r.Signatures != nil
}

// touchesReviewFields reports whether the patch changes status or comment.
func (r UpdateRequest) touchesReviewFields() bool {
	return r.Status != nil || r.Comment != nil
}

// StatusRequest changes the status of a single record.
type StatusRequest struct {
	Status  Status  `json:"status" validate:"required"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// BatchRequest lists record ids for batch delete and export.
type BatchRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
}

// BatchStatusRequest applies one status to many records.
type BatchStatusRequest struct {
	IDs     []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
	Status  Status      `json:"status" validate:"required"`
	Comment *string     `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// ExistsResponse answers the advisory number check.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// NextNumberResponse suggests the next free record number.
type NextNumberResponse struct {
	Number int `json:"number"`
}
