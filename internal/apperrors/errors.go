package apperrors

import (
	"errors"
)

// Error is a user-actionable failure with a stable code and a short remediation hint
// Sentinels below are compared by identity, so wrap them with %w and test with errors.Is
type Error struct {
	Code string
	Hint string
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(code string, msg string, hint string) *Error {
	return &Error{Code: code, Hint: hint, msg: msg}
}

var (
	ErrInvalidCredentials     = newError("invalid_credentials", "invalid credentials", "check your email and password")
	ErrPrincipalNotFound      = newError("principal_not_found", "principal not found", "sign up or check the email address")
	ErrPrincipalInactive      = newError("principal_inactive", "principal is inactive", "contact an administrator to reactivate the account")
	ErrPrincipalInvalid       = newError("principal_invalid", "principal is missing or inactive", "sign in again")
	ErrPrincipalAlreadyExists = newError("principal_already_exists", "principal already exists", "sign in instead")
	ErrEmptyPassword          = newError("empty_password", "password must not be empty", "choose a non-empty password")

	ErrNoToken             = newError("no_token", "access token is missing", "send an 'Authorization: Bearer <token>' header")
	ErrEmptyToken          = newError("empty_token", "access token is empty", "send a non-empty bearer token")
	ErrTokenExpired        = newError("token_expired", "access token is expired", "renew your session")
	ErrTokenMalformed      = newError("token_malformed", "access token is malformed", "sign in again")
	ErrTokenNotYetValid    = newError("token_not_yet_valid", "access token is not valid yet", "check the client clock and retry")
	ErrInvalidTokenPayload = newError("invalid_token_payload", "access token payload is invalid", "sign in again")

	ErrRenewalTokenNotFound  = newError("renewal_token_not_found", "renewal token not found", "sign in again")
	ErrRenewalTokenInvalid   = newError("renewal_token_invalid", "renewal token is invalid", "sign in again")
	ErrRenewalTokenMalformed = newError("renewal_token_malformed", "renewal token is malformed", "sign in again")

	ErrSessionNotFound = newError("session_not_found", "session not found", "refresh the session list")
	ErrForbidden       = newError("forbidden", "operation is forbidden", "you can only manage your own sessions")

	ErrInternal = newError("internal_error", "internal error", "retry later")
)

// Storage level errors, never shown to the user as is
var (
	ErrRenewalTokenConflict = errors.New("renewal token value already exists")
	ErrUsageConflict        = errors.New("renewal token usage changed concurrently")
)

// Reasons why a stored renewal token fails the validity predicate
// Logged and audited, the caller only sees ErrRenewalTokenInvalid
const (
	ReasonRevoked   = "revoked"
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
)

// Describe unwraps err to the nearest taxonomy entry
// Anything unknown is reported as ErrInternal
func Describe(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
