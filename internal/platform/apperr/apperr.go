// Package apperr defines the error taxonomy shared by the domain services and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrConflict is returned when a conditional update lost against a concurrent writer.
var ErrConflict = errors.New("resource was modified concurrently")

// Violation names one broken invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError reports bad caller input. The caller must correct and resubmit.
type ValidationError struct {
	Violations []Violation
}

// NewValidationError returns nil when no violations are given.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// Invalid builds a single-violation ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Violations: []Violation{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) HTTPStatus() int { return http.StatusUnprocessableEntity }

func (e *ValidationError) Details() map[string]interface{} {
	return map[string]interface{}{"violations": e.Violations}
}

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }

func (e *NotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID}
}

// ForbiddenError reports an actor lacking a capability.
type ForbiddenError struct {
	Actor      string
	Capability string
	Reason     string
}

func (e *ForbiddenError) Error() string {
	msg := fmt.Sprintf("actor %s lacks capability %s", e.Actor, e.Capability)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ForbiddenError) HTTPStatus() int { return http.StatusForbidden }

func (e *ForbiddenError) Details() map[string]interface{} {
	return map[string]interface{}{"actor": e.Actor, "capability": e.Capability}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// statusError is implemented by every error in the taxonomy, including the
// ones declared by domain packages.
type statusError interface {
	error
	HTTPStatus() int
	Details() map[string]interface{}
}

// Body is the JSON shape of an error response.
type Body struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToHTTP converts a service error into an echo HTTP error carrying a
// structured body. Unknown errors become 500s.
func ToHTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var se statusError
	if errors.As(err, &se) {
		return echo.NewHTTPError(se.HTTPStatus(), Body{Error: se.Error(), Details: se.Details()})
	}
	if errors.Is(err, ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, Body{Error: err.Error()})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, Body{Error: err.Error()})
}
