package handlers

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nkiryanov/sessionkeeper/internal/models"
)

// Device fields a client may send along with credentials
type deviceRequest struct {
	DeviceID   string `json:"device_id" validate:"omitempty,max=128"`
	DeviceType string `json:"device_type" validate:"omitempty,max=32"`
}

const (
	maxDeviceIDLen   = 128
	maxDeviceTypeLen = 32
)

// Client reported device plus network data of the request
// Device fields are clipped, so requests decoded without validation can't store oversized values
func deviceFromRequest(r *http.Request, d deviceRequest) models.DeviceInfo {
	return models.DeviceInfo{
		DeviceID:   clip(d.DeviceID, maxDeviceIDLen),
		DeviceType: clip(d.DeviceType, maxDeviceTypeLen),
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// First address of X-Forwarded-For, then X-Real-IP, then the peer address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
