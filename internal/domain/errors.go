package domain

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal               Code = "INTERNAL"
	CodeNotFound               Code = "NOT_FOUND"
	CodeDuplicateSlug          Code = "DUPLICATE_SLUG"
	CodeDuplicateEmail         Code = "DUPLICATE_EMAIL"
	CodeTerminalOrInvalidStage Code = "TERMINAL_OR_INVALID_STAGE"
	CodeWrongStage             Code = "WRONG_STAGE"
	CodeConcurrentTransition   Code = "CONCURRENT_TRANSITION"
	CodeExpiredOrMissingLink   Code = "EXPIRED_OR_MISSING_LINK"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeLedgerUnavailable      Code = "LEDGER_UNAVAILABLE"
)

// Error is the domain error type. Two errors match under errors.Is when their
// codes are equal.
type Error struct {
	Code    Code
	Message string // safe to show to API callers
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a domain error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a domain error around an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound               = NewError(CodeNotFound, "Invalid prospectus id.")
	ErrDuplicateSlug          = NewError(CodeDuplicateSlug, "slug already in use")
	ErrDuplicateEmail         = NewError(CodeDuplicateEmail, "requester email already in use")
	ErrTerminalOrInvalidStage = NewError(CodeTerminalOrInvalidStage, "invalid or terminal stage")
	ErrWrongStage             = NewError(CodeWrongStage, "prospectus is not in the correct stage")
	ErrConcurrentTransition   = NewError(CodeConcurrentTransition, "prospectus stage changed concurrently")
	ErrExpiredOrMissingLink   = NewError(CodeExpiredOrMissingLink, "Email activation link expired.")
	ErrInvalidToken           = NewError(CodeInvalidToken, "Invalid identity activation key.")
	ErrLedgerUnavailable      = NewError(CodeLedgerUnavailable, "verification ledger unavailable")
)

// CodeOf extracts the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsDuplicate reports whether err is a slug or email uniqueness failure.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateSlug) || errors.Is(err, ErrDuplicateEmail)
}
