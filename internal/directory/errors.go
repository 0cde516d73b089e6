package directory

import (
	"errors"
	"fmt"
)

// Kind names the entity an error refers to.
type Kind string

const (
	KindUser  Kind = "user"
	KindPirg  Kind = "pirg"
	KindGroup Kind = "group"
)

// Sentinels for errors.Is. The typed errors below match them.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidReference = errors.New("invalid reference")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrValidation       = errors.New("validation error")
)

// Unique constraint names shared by every Store implementation.
const (
	ConstraintUsername  = "users_username_key"
	ConstraintEmail     = "users_email_key"
	ConstraintPirgName  = "pirgs_name_key"
	ConstraintGroupName = "groups_pirg_id_name_key"
)

// NotFoundError indicates that a referenced entity does not resolve.
type NotFoundError struct {
	Kind Kind
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError indicates a uniqueness violation.
type AlreadyExistsError struct {
	Kind  Kind
	Field string
	Value string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// InvalidReferenceError reports one id of a creation payload that does not
// resolve. It also matches ErrNotFound.
type InvalidReferenceError struct {
	Kind  Kind
	Field string
	ID    int64
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("%s: %s id %d does not exist", e.Field, e.Kind, e.ID)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference || target == ErrNotFound
}

// ConstraintError is returned by a Store when a write violates a unique
// constraint.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewDuplicateKey builds the ConstraintError a Store returns for constraint.
func NewDuplicateKey(constraint string) *ConstraintError {
	return &ConstraintError{Constraint: constraint, Err: ErrDuplicateKey}
}
