package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ausbildung/nachweis/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs tag validation and reports the first failing fields as VALIDATION.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return shared.Validationf("invalid fields: %s", strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", shared.ErrValidation, err)
}

func validatePeriod(start, end Date) error {
	if start.IsZero() || end.IsZero() {
		return ErrMissingPeriod
	}
	if end.Before(start.Time) {
		return ErrInvalidPeriod
	}
	return nil
}

// ValidateCreateRequest validates create request.
func ValidateCreateRequest(req CreateRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := validatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
		return err
	}
	return ValidateActivities(req.Activities)
}

// ValidateUpdateRequest validates the patch fields that are present.
func ValidateUpdateRequest(req UpdateRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.Status != nil && !req.Status.IsValid() {
		return shared.Validationf("unknown status %q", *req.Status)
	}
	if req.Activities != nil {
		return ValidateActivities(*req.Activities)
	}
	return nil
}

// ValidateBatchStatusRequest validates a batch status change.
func ValidateBatchStatusRequest(req BatchStatusRequest) error {
	if len(req.IDs) == 0 {
		return ErrEmptyIDs
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if !req.Status.IsValid() {
		return shared.Validationf("unknown status %q", req.Status)
	}
	return nil
}
