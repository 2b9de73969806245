// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/ausbildung/nachweis/internal/shared"
)

var statusByCode = map[shared.Code]struct {
	status int
	title  string
}{
	shared.CodeValidation:      {http.StatusBadRequest, "Validation Failed"},
	shared.CodeDuplicateNumber: {http.StatusConflict, "Duplicate Number"},
	shared.CodeForbidden:       {http.StatusForbidden, "Forbidden"},
	shared.CodeNotFound:        {http.StatusNotFound, "Not Found"},
	shared.CodeConflict:        {http.StatusConflict, "Conflict"},
	shared.CodeTransport:       {http.StatusBadGateway, "Upstream Failure"},
	shared.CodeUnauthorized:    {http.StatusUnauthorized, "Unauthorized"},
}

// StatusOf returns the HTTP status RespondError would use for err.
func StatusOf(err error) int {
	if m, ok := statusByCode[shared.CodeOf(err)]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	m, ok := statusByCode[code]
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.CodeInternal, "")
		return
	}
	Problem(w, m.status, m.title, code, err.Error())
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	if err == nil || errors.Is(err, shared.ErrTransport) {
		return false
	}
	s := StatusOf(err)
	return s >= 400 && s < 500
}
