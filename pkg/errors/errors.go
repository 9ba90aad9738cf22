// Package errors defines the typed failures surfaced by the versioning core.
//
// The taxonomy lets a caller distinguish "fix your input" (ValidationError)
// from "this was already impossible" (InvariantViolation, NotFoundError) from
// "try again later" (CollaboratorError).
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ValidationError reports field-level problems with user input. Nothing is
// persisted when a field set contains an invalid member.
type ValidationError struct {
	Message string
	// Fields maps a field id to the messages describing why it is invalid
	Fields map[string][]string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{
		Message: msg,
		Fields:  map[string][]string{},
	}
}

func (e *ValidationError) AddField(fieldID string, msgs ...string) *ValidationError {
	e.Fields[fieldID] = append(e.Fields[fieldID], msgs...)
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	ids := make([]string, 0, len(e.Fields))
	for id := range e.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %s", id, strings.Join(e.Fields[id], "; ")))
	}

	return e.Message + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(http.StatusBadRequest, e.Error())
	for id, msgs := range e.Fields {
		herr = herr.AddMetaValue(id, strings.Join(msgs, "; "))
	}
	return herr
}

// InvariantViolation reports an operation that is refused before any store
// call because it would break a structural rule, e.g. deleting the only
// remaining version of an image.
type InvariantViolation struct {
	Message string
}

func NewInvariantViolation(format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}

func (e *InvariantViolation) Error() string {
	return e.Message
}

func (e *InvariantViolation) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Message)
}

// NotFoundError reports an operation against a version or image the
// repository does not know about.
type NotFoundError struct {
	Resource string
	ID       int64
}

func NewNotFoundError(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error())
}

// CollaboratorError wraps a failure from an external collaborator (store,
// extraction service). The cause is preserved for errors.Unwrap; no local
// state is mutated when one of these is returned.
type CollaboratorError struct {
	Op  string
	Err error
}

func NewCollaboratorError(op string, err error) *CollaboratorError {
	return &CollaboratorError{Op: op, Err: err}
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func (e *CollaboratorError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadGateway, e.Error())
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInvariantViolation(err error) bool {
	var target *InvariantViolation
	return errors.As(err, &target)
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsCollaboratorError(err error) bool {
	var target *CollaboratorError
	return errors.As(err, &target)
}

// ToHTTPError maps any domain error to its transport representation. Unknown
// errors become a plain 500 so nothing internal leaks.
func ToHTTPError(err error) *httperror.HTTPError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.ToHTTPError()
	}

	var iv *InvariantViolation
	if errors.As(err, &iv) {
		return iv.ToHTTPError()
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.ToHTTPError()
	}

	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.ToHTTPError()
	}

	if httperror.IsHTTPError(err) {
		return httperror.ToHTTPError(err)
	}

	return httperror.NewHTTPError(http.StatusInternalServerError, "internal error")
}
