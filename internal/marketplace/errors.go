package marketplace

import (
	"fmt"

	"github.com/google/uuid"
)

// Reason codes surfaced to callers. Stable: clients and tests match on
// these, not on message text.
const (
	CodeValidation             = "validation_error"
	CodeNotFoundOrUnauthorized = "not_found_or_unauthorized"
	CodeSelfTradeForbidden     = "self_trade_forbidden"
	CodeListingNotActive       = "listing_not_active"
	CodeAlreadyConfirmed       = "already_confirmed"
	CodeInvalidState           = "invalid_state"
)

// Error is a recoverable marketplace error with a stable reason code.
type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// Is matches on reason code so errors.Is(err, ErrValidation) works for any
// detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation             = &Error{Code: CodeValidation}
	ErrNotFoundOrUnauthorized = &Error{Code: CodeNotFoundOrUnauthorized}
	ErrSelfTradeForbidden     = &Error{Code: CodeSelfTradeForbidden}
	ErrListingNotActive       = &Error{Code: CodeListingNotActive}
	ErrAlreadyConfirmed       = &Error{Code: CodeAlreadyConfirmed}
	ErrInvalidState           = &Error{Code: CodeInvalidState}
)

func validationError(format string, args ...interface{}) error {
	return &Error{Code: CodeValidation, Detail: fmt.Sprintf(format, args...)}
}

func notFoundOrUnauthorized(what string) error {
	return &Error{Code: CodeNotFoundOrUnauthorized, Detail: what + " not found or not authorized"}
}

func invalidState(format string, args ...interface{}) error {
	return &Error{Code: CodeInvalidState, Detail: fmt.Sprintf(format, args...)}
}

func listingNotActive(id uuid.UUID) error {
	return &Error{Code: CodeListingNotActive, Detail: fmt.Sprintf("listing %s is not active", id)}
}

func selfTradeForbidden() error {
	return &Error{Code: CodeSelfTradeForbidden, Detail: "cannot make offers on your own listing"}
}

func alreadyConfirmed(side string) error {
	return &Error{Code: CodeAlreadyConfirmed, Detail: side + " has already confirmed"}
}
