package records

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ausbildung/nachweis/internal/shared"
)

func TestTransition_Unrestricted(t *testing.T) {
	all := []Status{StatusInBearbeitung, StatusAngenommen, StatusAbgelehnt}
	for _, from := range all {
		for _, to := range all {
			assert.NoError(t, Transition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(Transition("DRAFT", StatusAngenommen)))
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(Transition(StatusAngenommen, "")))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("ABGELEHNT")
	assert.NoError(t, err)
	assert.Equal(t, StatusAbgelehnt, s)

	_, err = ParseStatus("abgelehnt")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransitionAction(t *testing.T) {
	assert.Equal(t, "APPROVED", transitionAction(StatusAngenommen))
	assert.Equal(t, "REJECTED", transitionAction(StatusAbgelehnt))
	assert.Equal(t, "STATUS_IN_BEARBEITUNG", transitionAction(StatusInBearbeitung))
}
