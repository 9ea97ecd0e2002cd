package domain

import "time"

// Technician is the authenticated support technician.
type Technician struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	GroupID    int64     `json:"group_id"`
	CompanyID  int64     `json:"company_id"`
	LocationID int64     `json:"location_id"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the technician's token has expired at now.
func (t Technician) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Scope is the ticket list scope of a technician.
type Scope struct {
	UserID     int64
	GroupID    int64
	CompanyID  int64
	LocationID int64
}

// Scope derives the list scope for t.
func (t Technician) Scope() Scope {
	return Scope{UserID: t.ID, GroupID: t.GroupID, CompanyID: t.CompanyID, LocationID: t.LocationID}
}
