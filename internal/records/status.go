// Package records implements the Nachweis lifecycle: activity grid, record
// model, approval transitions and batch administration.
package records

import (
	"fmt"

	"github.com/ausbildung/nachweis/internal/shared"
)

// Status represents the approval state of a record.
type Status string

const (
	StatusInBearbeitung Status = "IN_BEARBEITUNG" // initial, awaiting review
	StatusAngenommen    Status = "ANGENOMMEN"     // approved
	StatusAbgelehnt     Status = "ABGELEHNT"      // rejected
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusInBearbeitung, StatusAngenommen, StatusAbgelehnt:
		return true
	default:
		return false
	}
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", shared.Validationf("unknown status %q", raw)
	}
	return s, nil
}

// Transition decides whether a record may move from one status to another.
// Reviewers may flip any status to any other, including re-approving.
func Transition(from, to Status) error {
	if !from.IsValid() {
		return shared.Validationf("unknown current status %q", from)
	}
	if !to.IsValid() {
		return shared.Validationf("unknown target status %q", to)
	}
	return nil
}

// transitionAction names the audit action for a status change.
func transitionAction(to Status) string {
	switch to {
	case StatusAngenommen:
		return "APPROVED"
	case StatusAbgelehnt:
		return "REJECTED"
	default:
		return fmt.Sprintf("STATUS_%s", to)
	}
}
