package auth

import (
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Claims describes the JWT payload issued by the ticketing API. Every field
// is optional; opaque tokens carry none.
type Claims struct {
	Name       string `json:"name,omitempty"`
	GroupID    int64  `json:"group_id,omitempty"`
	CompanyID  int64  `json:"company_id,omitempty"`
	LocationID int64  `json:"location_id,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken reads the claims of a JWT without verifying its signature.
// The API verifies tokens; the client only needs the subject and expiry.
func InspectToken(raw string) (*Claims, bool) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// ApplyClaims fills the fields of tech that the login response left empty.
func ApplyClaims(tech domain.Technician, c *Claims) domain.Technician {
	if c == nil {
		return tech
	}
	if tech.ID == 0 {
		if id, err := strconv.ParseInt(c.Subject, 10, 64); err == nil {
			tech.ID = id
		}
	}
	if tech.Name == "" {
		tech.Name = c.Name
	}
	if tech.GroupID == 0 {
		tech.GroupID = c.GroupID
	}
	if tech.CompanyID == 0 {
		tech.CompanyID = c.CompanyID
	}
	if tech.LocationID == 0 {
		tech.LocationID = c.LocationID
	}
	if c.ExpiresAt != nil {
		tech.ExpiresAt = c.ExpiresAt.Time
	}
	return tech
}
