package models

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorKind is the stable, machine-readable category of a domain error.
type ErrorKind string

const (
	KindInvalidTransition     ErrorKind = "INVALID_TRANSITION"
	KindInvalidState          ErrorKind = "INVALID_STATE"
	KindInvalidItemState      ErrorKind = "INVALID_ITEM_STATE"
	KindForbidden             ErrorKind = "FORBIDDEN"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindNotCovered            ErrorKind = "NOT_COVERED"
	KindPolicyNotActive       ErrorKind = "POLICY_NOT_ACTIVE"
	KindMissingInformation    ErrorKind = "MISSING_INFORMATION"
	KindIncompleteReview      ErrorKind = "INCOMPLETE_REVIEW"
	KindBusinessRuleViolation ErrorKind = "BUSINESS_RULE_VIOLATION"
	KindConcurrencyConflict   ErrorKind = "CONCURRENCY_CONFLICT"
	KindInvalidInput          ErrorKind = "INVALID_INPUT"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
	ErrInvalidItemState      = &Error{Kind: KindInvalidItemState}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrNotCovered            = &Error{Kind: KindNotCovered}
	ErrPolicyNotActive       = &Error{Kind: KindPolicyNotActive}
	ErrMissingInformation    = &Error{Kind: KindMissingInformation}
	ErrIncompleteReview      = &Error{Kind: KindIncompleteReview}
	ErrBusinessRuleViolation = &Error{Kind: KindBusinessRuleViolation}
	ErrConcurrencyConflict   = &Error{Kind: KindConcurrencyConflict}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
)

// Error is a domain failure carrying its kind and a human message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error that keeps cause in its chain.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func notFound(entity string, id primitive.ObjectID) *Error {
	return NewError(KindNotFound, "%s %s not found", entity, id.Hex())
}

func forbidden(role Role, action Action) *Error {
	return NewError(KindForbidden, "role %q may not %s", role, action)
}

func ruleViolation(format string, args ...any) *Error {
	return NewError(KindBusinessRuleViolation, format, args...)
}
