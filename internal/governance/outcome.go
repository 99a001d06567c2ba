package governance

import (
	"errors"
	"strings"
)

// Outcome is the closed set of ways a governance operation can fail.
type Outcome string

const (
	Unauthenticated Outcome = "UNAUTHENTICATED"
	Unauthorized    Outcome = "UNAUTHORIZED"
	NotFound        Outcome = "NOT_FOUND"
	Conflict        Outcome = "CONFLICT"
	Invalid         Outcome = "INVALID"
	Internal        Outcome = "INTERNAL"
)

type rule struct {
	outcome Outcome
	phrases []string
}

// Order matters: the first rule with a matching phrase wins.
var rules = []rule{
	{outcome: Unauthorized, phrases: []string{"not authorized", "must be an active board member"}},
	{outcome: NotFound, phrases: []string{"not found", "no minutes", "no motion"}},
	{outcome: Conflict, phrases: []string{"already approved", "already finalized", "already exists"}},
}

// Classify maps a free-text failure reason to an Outcome. Anything that
// matches no rule is Invalid.
func Classify(reason string) Outcome {
	lower := strings.ToLower(reason)
	for _, r := range rules {
		for _, phrase := range r.phrases {
			if strings.Contains(lower, phrase) {
				return r.outcome
			}
		}
	}
	return Invalid
}

type Error struct {
	Outcome Outcome
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(outcome Outcome, message string) *Error {
	return &Error{Outcome: outcome, Message: message}
}

func ErrUnauthenticated() *Error { return newError(Unauthenticated, "Unauthorized") }

func ErrUnauthorized(message string) *Error { return newError(Unauthorized, message) }

func ErrNotFound(message string) *Error { return newError(NotFound, message) }

func ErrConflict(message string) *Error { return newError(Conflict, message) }

func ErrInvalid(message string) *Error { return newError(Invalid, message) }

func ErrInternal(err error) *Error {
	return &Error{Outcome: Internal, Message: "Server error", Err: err}
}

// FromReason builds an error whose outcome is derived from the reason text.
func FromReason(reason string, cause error) *Error {
	return &Error{Outcome: Classify(reason), Message: reason, Err: cause}
}

// OutcomeOf reports the outcome carried by err. Errors that were never
// classified are Internal.
func OutcomeOf(err error) Outcome {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Outcome
	}
	return Internal
}
