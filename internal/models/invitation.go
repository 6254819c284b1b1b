package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Invitation lifecycle statuses.
const (
	InvitationPending   = "PENDING"
	InvitationActivated = "ACTIVATED"
	InvitationCheckedIn = "CHECKED_IN"
	InvitationExpired   = "EXPIRED"
)

type Invitation struct {
	bun.BaseModel `bun:"table:invitations"`

	InvitationID string     `bun:"invitation_id,pk" json:"invitation_id"`
	HostID       string     `bun:"host_id,notnull" json:"host_id"`
	GuestID      string     `bun:"guest_id,notnull" json:"guest_id"`
	VisitDate    time.Time  `bun:"visit_date,notnull" json:"visit_date"`
	Status       string     `bun:"status,notnull" json:"status"`
	QRExpiresAt  *time.Time `bun:"qr_expires_at,nullzero" json:"qr_expires_at,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
