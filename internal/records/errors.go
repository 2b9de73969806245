package records

import (
	"fmt"

	"github.com/ausbildung/nachweis/internal/shared"
)

// Domain errors for records. Each wraps a taxonomy sentinel from shared.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = fmt.Errorf("%w: record", shared.ErrNotFound)

	ErrNotOwnerOrTrainer = fmt.Errorf("%w: only the owner or the assigned trainer may change this record", shared.ErrForbidden)
	ErrOwnerOrAdminOnly  = fmt.Errorf("%w: only the owner or an admin may delete this record", shared.ErrForbidden)
	ErrReviewerOnly      = fmt.Errorf("%w: only a trainer or admin may change status or comment", shared.ErrForbidden)
	ErrNotAssigned       = fmt.Errorf("%w: record is assigned to another trainer", shared.ErrForbidden)
	ErrCannotRead        = fmt.Errorf("%w: record is not visible to caller", shared.ErrForbidden)

	ErrEmptyIDs       = fmt.Errorf("%w: ids must not be empty", shared.ErrValidation)
	ErrInvalidPeriod  = fmt.Errorf("%w: periodEnd must not be before periodStart", shared.ErrValidation)
	ErrMissingPeriod  = fmt.Errorf("%w: periodStart and periodEnd are required", shared.ErrValidation)
	ErrInvalidNumber  = fmt.Errorf("%w: number must be positive", shared.ErrValidation)
	ErrMissingTrainer = fmt.Errorf("%w: trainerId is required", shared.ErrValidation)

	// ErrNumberTaken is the storage level race on UNIQUE(owner_id, number).
	ErrNumberTaken = fmt.Errorf("%w: record number already taken", shared.ErrConflict)
)

// duplicateNumber builds the advisory pre-check failure quoting the number.
func duplicateNumber(number int) error {
	return fmt.Errorf("%w: Nachweis number %d already exists", shared.ErrDuplicateNumber, number)
}
