// Package audit records security relevant events of the session lifecycle.
// Sinks never fail the caller: a failed write is logged and forgotten.
package audit

import (
	"context"
	"time"
)

// Event names
const (
	LoginAttempt        = "login_attempt"
	LoginSuccess        = "login_success"
	LoginFailed         = "login_failed"
	RefreshSuccess      = "refresh_success"
	RefreshFailed       = "refresh_failed"
	RefreshTokenRotated = "refresh_token_rotated"
	SessionRevoked      = "session_revoked"
	Logout              = "logout"
	SuspiciousActivity  = "suspicious_activity"
)

// Reasons of failures and suspicious activity
const (
	ReasonInvalidCredentials         = "invalid_credentials"
	ReasonPrincipalNotFound          = "principal_not_found"
	ReasonPrincipalInactive          = "principal_inactive"
	ReasonTokenNotFound              = "token_not_found"
	ReasonTokenMalformed             = "token_malformed"
	ReasonRepeatedInvalidCredentials = "repeated_invalid_credentials"
	ReasonRenewalTokenReplay         = "renewal_token_replay"
	ReasonForeignSession             = "foreign_session"
)

type Event struct {
	Name       string
	Subject    string
	IPAddress  string
	Reason     string
	Attributes map[string]string
	At         time.Time
}

type Sink interface {
	Record(ctx context.Context, event Event)
}

// Multi fans every event out to all sinks in order
type Multi []Sink

func (m Multi) Record(ctx context.Context, event Event) {
	for _, s := range m {
		s.Record(ctx, event)
	}
}

// Suspicious events are worth a look from a human
func (e Event) IsAlarming() bool {
	return e.Name == SuspiciousActivity
}
