package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrOverpayment = errors.New("payment exceeds remaining balance")

	ErrDebtAlreadyPaid = errors.New("debt is already fully paid")

	ErrDebtCancelled = errors.New("debt has been cancelled")

	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")

	ErrConflict = errors.New("resource conflict")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {

	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// ExternalDependencyError reports a failure of a collaborator (persistence or
// notification transport). Committed tells the caller whether local state was
// already durable before the external call failed.
type ExternalDependencyError struct {
	Dependency string
	Committed  bool
	Cause      error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("external dependency '%s' failed (committed=%t): %v", e.Dependency, e.Committed, e.Cause)
}

func (e *ExternalDependencyError) Unwrap() error {
	return e.Cause
}

func NewExternalDependencyError(dependency string, committed bool, cause error) error {
	return &ExternalDependencyError{Dependency: dependency, Committed: committed, Cause: cause}
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}
