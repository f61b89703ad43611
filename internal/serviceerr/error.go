// Package serviceerr defines the coded error type returned by every Shelf service.
package serviceerr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies a service failure so the HTTP layer can pick a status code.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// ServiceError carries a stable "<package>.<operation>.<reason>" code, a kind and the cause.
type ServiceError struct {
	code   string
	reason string
	kind   Kind
	err    error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the fully qualified error code.
func (e *ServiceError) Code() string {
	return e.code
}

// Reason returns the trailing reason segment of the code.
func (e *ServiceError) Reason() string {
	return e.reason
}

// Kind returns the error classification.
func (e *ServiceError) Kind() Kind {
	return e.kind
}

// New builds a ServiceError for the given operation and reason.
func New(operation, reason string, kind Kind, cause error) error {
	return &ServiceError{
		code:   fmt.Sprintf("%s.%s", operation, reason),
		reason: reason,
		kind:   kind,
		err:    cause,
	}
}

// As extracts a ServiceError from the chain.
func As(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal when err is not a ServiceError.
func KindOf(err error) Kind {
	if serviceErr, ok := As(err); ok {
		return serviceErr.kind
	}
	return KindInternal
}

// IsDuplicateKey reports whether err is a unique-constraint violation from the store.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsForeignKeyViolation reports whether err is a foreign-key failure from the store.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
