package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Visit is the admission record. It is immutable once created; a visit
// stops being active when ExpiresAt lapses, there is no checkout event.
type Visit struct {
	bun.BaseModel `bun:"table:visits"`

	VisitID        string     `bun:"visit_id,pk" json:"visit_id"`
	GuestID        string     `bun:"guest_id,notnull" json:"guest_id"`
	HostID         string     `bun:"host_id,notnull" json:"host_id"`
	InvitationID   string     `bun:"invitation_id,nullzero" json:"invitation_id,omitempty"`
	CheckedInAt    *time.Time `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	ExpiresAt      time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	OverrideReason string     `bun:"override_reason,nullzero" json:"override_reason,omitempty"`
	OverrideBy     string     `bun:"override_by,nullzero" json:"override_by,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Active reports whether the visit counts toward occupancy at the given
// instant: checked in and not yet expired.
func (v Visit) Active(now time.Time) bool {
	return v.CheckedInAt != nil && v.ExpiresAt.After(now)
}
