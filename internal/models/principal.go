package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Principal struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	DisplayName    string
	Role           string
	IsActive       bool
	LastActivityAt *time.Time // nil if principal never made an authenticated request
	PasswordHash   string
}
