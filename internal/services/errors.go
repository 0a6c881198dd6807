package services

import (
	"fmt"

	"github.com/rihlaapp/rihla-backend/internal/store"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

// Kind classifies a service failure for callers. Handlers map kinds to HTTP
// statuses; anything that is not a *Error is an internal storage failure and
// must not leak its detail to clients.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidOperation  Kind = "invalid_operation"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func ForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func InvalidOperationError(message string) *Error {
	return &Error{Kind: KindInvalidOperation, Message: message}
}

func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// notFoundAs turns a storage miss into a not-found rejection with a
// caller-facing message; other errors pass through unchanged.
func notFoundAs(err error, message string) error {
	if err == store.ErrNotFound {
		return NotFoundError(message)
	}
	return err
}

func InsufficientFundsError(requiredCents, availableCents int64) *Error {
	return &Error{
		Kind: KindInsufficientFunds,
		Message: fmt.Sprintf("Insufficient balance. Required: %s EGP. Current balance: %s EGP.",
			utils.FormatEGP(requiredCents), utils.FormatEGP(availableCents)),
	}
}
