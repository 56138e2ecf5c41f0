package session

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMetadataBytes bounds each metadata field.
const MaxMetadataBytes = 512

// Metadata is client context captured at login.
type Metadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Clamp truncates every field to MaxMetadataBytes on a rune boundary.
func (m Metadata) Clamp() Metadata {
	return Metadata{
		IP:        clampString(m.IP),
		UserAgent: clampString(m.UserAgent),
		Device:    clampString(m.Device),
	}
}

func clampString(s string) string {
	if len(s) <= MaxMetadataBytes {
		return s
	}
	cut := MaxMetadataBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.ToValidUTF8(s[:cut], "")
}

// Session is one login. ID is the jti embedded in the issued token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Metadata  Metadata  `json:"metadata"`
}

// ActiveAt reports whether the session is still live at now.
func (s *Session) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// TTL returns the full configured lifetime of the session.
func (s *Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.CreatedAt)
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}
