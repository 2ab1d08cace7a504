package models

import (
	"time"
)

// Persisted audit record of a security event
type SecurityEvent struct {
	ID         string
	Name       string
	Subject    string
	IPAddress  string
	Reason     string
	Attributes map[string]string
	CreatedAt  time.Time
}
