package domain

import "time"

// Token is the persisted login of the technician.
type Token struct {
	Value      string     `json:"token"`
	Technician Technician `json:"technician"`
	IssuedAt   time.Time  `json:"issued_at"`
}

// Expired reports whether the token can no longer be used at now. Tokens
// without a known expiry never expire locally.
func (t Token) Expired(now time.Time) bool {
	return t.Technician.Expired(now)
}
