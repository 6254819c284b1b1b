package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Guest struct {
	bun.BaseModel `bun:"table:guests"`

	GuestID       string     `bun:"guest_id,pk" json:"guest_id"`
	Email         string     `bun:"email,unique,notnull" json:"email"`
	FullName      string     `bun:"full_name,notnull" json:"full_name"`
	Country       string     `bun:"country,nullzero" json:"country,omitempty"`
	Company       string     `bun:"company,nullzero" json:"company,omitempty"`
	BlacklistedAt *time.Time `bun:"blacklisted_at,nullzero" json:"blacklisted_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// MergeGuest resolves a stored guest against a freshly scanned descriptor.
// The incoming name wins when non-empty; identity and blacklist state are
// never touched by a scan.
func MergeGuest(existing Guest, incomingName string) Guest {
	merged := existing
	if incomingName != "" && incomingName != existing.FullName {
		merged.FullName = incomingName
		merged.UpdatedAt = time.Now()
	}
	return merged
}
