package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PolicyRowID pins the singleton row.
const PolicyRowID = 1

// Bounds enforced on policy writes.
const (
	GuestMonthlyLimitMin   = 1
	GuestMonthlyLimitMax   = 100
	HostConcurrentLimitMin = 1
	HostConcurrentLimitMax = 50
)

type Policy struct {
	bun.BaseModel `bun:"table:policies"`

	ID                  int       `bun:"id,pk" json:"id"`
	GuestMonthlyLimit   int       `bun:"guest_monthly_limit,notnull" json:"guest_monthly_limit"`
	HostConcurrentLimit int       `bun:"host_concurrent_limit,notnull" json:"host_concurrent_limit"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Validate checks that the limits stay within sane operational bounds.
func (p Policy) Validate() bool {
	if p.GuestMonthlyLimit < GuestMonthlyLimitMin || p.GuestMonthlyLimit > GuestMonthlyLimitMax {
		return false
	}
	if p.HostConcurrentLimit < HostConcurrentLimitMin || p.HostConcurrentLimit > HostConcurrentLimitMax {
		return false
	}
	return true
}
