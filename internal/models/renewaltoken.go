package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
)

type DeviceInfo struct {
	DeviceID   string
	IPAddress  string
	UserAgent  string
	DeviceType string
}

// Long-lived credential record
// Value is the plain token; it is known only right after creation and never read back from storage
type RenewalToken struct {
	ID         uuid.UUID
	Value      string
	ValueHash  string
	Subject    string
	FamilyID   uuid.UUID
	Device     DeviceInfo
	UsedCount  int
	MaxUses    int
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time // nil if token never used
	ExpiresAt  time.Time
}

// IsValid gates every renew decision: raw existence is never enough
func (t RenewalToken) IsValid(now time.Time) bool {
	return t.InvalidReason(now) == ""
}

// InvalidReason returns why the token fails IsValid or empty string if it is valid
func (t RenewalToken) InvalidReason(now time.Time) string {
	switch {
	case !t.IsActive:
		return apperrors.ReasonRevoked
	case !now.Before(t.ExpiresAt):
		return apperrors.ReasonExpired
	case t.UsedCount >= t.MaxUses:
		return apperrors.ReasonExhausted
	default:
		return ""
	}
}

// Read-only projection of an active renewal token
type SessionView struct {
	ID         uuid.UUID
	FamilyID   uuid.UUID
	Device     DeviceInfo
	UsedCount  int
	MaxUses    int
	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
}

func NewSessionView(t RenewalToken) SessionView {
	return SessionView{
		ID:         t.ID,
		FamilyID:   t.FamilyID,
		Device:     t.Device,
		UsedCount:  t.UsedCount,
		MaxUses:    t.MaxUses,
		CreatedAt:  t.CreatedAt,
		LastUsedAt: t.LastUsedAt,
		ExpiresAt:  t.ExpiresAt,
	}
}
