package duel

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can map them to responses
// without string matching.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInvalidState         Kind = "invalid_state"
	KindUnauthorized         Kind = "unauthorized"
	KindDuplicateAction      Kind = "duplicate_action"
	KindDuplicatePlayer      Kind = "duplicate_player"
	KindDuplicateBattle      Kind = "duplicate_battle"
	KindAlreadyQueued        Kind = "already_queued"
	KindAlreadyProcessed     Kind = "already_processed"
	KindAlreadyDefeated      Kind = "already_defeated"
	KindDataIntegrity        Kind = "data_integrity"
	KindInvalidArgument      Kind = "invalid_argument"
	KindInsufficientResource Kind = "insufficient_resource"
	KindConflict             Kind = "conflict"
)

// Error is the single error type returned by the engine. Code narrows a
// kind (for example out_of_order under invalid_argument).
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on kind, and on code when the target carries one, so
// errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState         = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrDuplicateAction      = &Error{Kind: KindDuplicateAction, Message: "wizard already acted this round"}
	ErrDuplicatePlayer      = &Error{Kind: KindDuplicatePlayer, Message: "player already in this duel"}
	ErrDuplicateBattle      = &Error{Kind: KindDuplicateBattle, Message: "battle already exists for this opponent"}
	ErrAlreadyQueued        = &Error{Kind: KindAlreadyQueued, Message: "user already in the lobby"}
	ErrAlreadyProcessed     = &Error{Kind: KindAlreadyProcessed, Message: "already processed"}
	ErrAlreadyDefeated      = &Error{Kind: KindAlreadyDefeated, Message: "opponent already defeated"}
	ErrDataIntegrity        = &Error{Kind: KindDataIntegrity, Message: "could not fetch all wizard data"}
	ErrInvalidArgument      = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrOutOfOrder           = &Error{Kind: KindInvalidArgument, Code: "out_of_order", Message: "opponent is not the current campaign opponent"}
	ErrInsufficientResource = &Error{Kind: KindInsufficientResource, Message: "insufficient credits"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "concurrent update, retry"}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return newError(KindInvalidState, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

func InvalidArgument(format string, args ...interface{}) error {
	return newError(KindInvalidArgument, format, args...)
}

func DataIntegrity(format string, args ...interface{}) error {
	return newError(KindDataIntegrity, format, args...)
}

// KindOf reports the kind of the first *Error in err's chain, or "" when
// err did not originate in the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
