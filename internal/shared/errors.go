// Package shared contains the error taxonomy used across the application.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors shared by stores, the broadcast pipeline and the adapters.
var (
	// ErrOutOfRange indicates a positional index outside the collection
	ErrOutOfRange = errors.New("index out of range")

	// ErrInvalidTime indicates an hour or minute outside the day
	ErrInvalidTime = errors.New("invalid time")

	// ErrValidation indicates that input validation failed
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates that the request lacks valid credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDelivery indicates that sending to a single recipient failed
	ErrDelivery = errors.New("delivery failed")

	// ErrPersistence indicates that loading or saving state failed
	ErrPersistence = errors.New("persistence failure")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindOutOfRange represents invalid positional indices
	KindOutOfRange
	// KindInvalidTime represents out-of-bounds trigger times
	KindInvalidTime
	// KindValidation represents input validation errors
	KindValidation
	// KindNotFound represents resource not found errors
	KindNotFound
	// KindUnauthorized represents authentication errors
	KindUnauthorized
	// KindDelivery represents per-recipient send failures
	KindDelivery
	// KindPersistence represents storage I/O failures
	KindPersistence
	// KindInternal represents internal errors
	KindInternal
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindOutOfRange:
		return "OutOfRange"
	case KindInvalidTime:
		return "InvalidTime"
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindDelivery:
		return "Delivery"
	case KindPersistence:
		return "Persistence"
	case KindInternal:
		return "Internal"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindPriorities defines the deterministic order for error classification.
// Caller-facing rejections come before infrastructure failures.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, context.Canceled},
	{KindOutOfRange, ErrOutOfRange},
	{KindInvalidTime, ErrInvalidTime},
	{KindValidation, ErrValidation},
	{KindNotFound, ErrNotFound},
	{KindUnauthorized, ErrUnauthorized},
	{KindDelivery, ErrDelivery},
	{KindPersistence, ErrPersistence},
	{KindInternal, ErrInternal},
}

// KindOf returns the Kind of err by walking its chain against the known sentinels.
// For errors created with errors.Join, the first matching kind in priority order is returned.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindOutOfRange:
//	    return http.StatusNotFound
//	case shared.KindInvalidTime, shared.KindValidation:
//	    return http.StatusBadRequest
//	default:
//	    return http.StatusInternalServerError
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, p := range kindPriorities {
		if errors.Is(err, p.err) {
			return p.kind
		}
	}
	return KindUnknown
}

// sentinelOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled it returns nil.
func sentinelOf(kind Kind) error {
	if kind == KindCanceled {
		return nil
	}
	for _, p := range kindPriorities {
		if p.kind == kind {
			return p.err
		}
	}
	return nil
}

// MarkKind wraps err with the sentinel of kind, preserving err in the chain.
// Marking an error with a kind it already has returns it unchanged.
//
// Example:
//
//	if err := os.WriteFile(path, data, 0o644); err != nil {
//	    return shared.MarkKind(err, shared.KindPersistence)
//	}
func MarkKind(err error, kind Kind) error {
	sentinel := sentinelOf(kind)
	if err == nil {
		return sentinel
	}
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// If err is nil, Wrap returns nil. If context is empty, returns err unchanged.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
