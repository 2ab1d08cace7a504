package models

import (
	"time"
)

// Access token kind claim value
const TokenKindAccess = "access"

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Claims carried by an access token
// Login and renew issue exactly the same shape
type AccessClaims struct {
	TokenID     string
	Subject     string
	Role        string
	DisplayName string
	Kind        string
	Issuer      string
	Audience    []string
	IssuedAt    time.Time
	NotBefore   time.Time
	ExpiresAt   time.Time
}

// Result of a successful Login
type LoginResult struct {
	AccessToken    IssuedToken
	AccessTokenTTL time.Duration
	RenewalToken   IssuedToken
	RenewalTTL     time.Duration
	Device         DeviceInfo
}

// Result of a successful Renew
// RenewalToken is set only when the presented token was rotated away
type RenewResult struct {
	AccessToken    IssuedToken
	AccessTokenTTL time.Duration
	RenewalToken   *IssuedToken
	RenewalTTL     time.Duration
	Rotated        bool
}

type IntrospectResult struct {
	Principal   Principal
	Claims      AccessClaims
	ValidatedAt time.Time
}

type LogoutResult struct {
	InvalidatedCount int64
}
