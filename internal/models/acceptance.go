package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Acceptance records a guest's agreement to the visitor terms. A guest may
// hold several (historical and current); eligibility only asks whether at
// least one unexpired acceptance exists.
type Acceptance struct {
	bun.BaseModel `bun:"table:acceptances"`

	AcceptanceID string     `bun:"acceptance_id,pk" json:"acceptance_id"`
	GuestID      string     `bun:"guest_id,notnull" json:"guest_id"`
	InvitationID string     `bun:"invitation_id,nullzero" json:"invitation_id,omitempty"`
	AcceptedAt   time.Time  `bun:"accepted_at,notnull" json:"accepted_at"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}
