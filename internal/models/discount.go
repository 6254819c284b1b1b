package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Discount is the one-per-guest reward issued on the guest's third
// lifetime admission. EmailSent stays false until the notification
// collaborator confirms delivery.
type Discount struct {
	bun.BaseModel `bun:"table:discounts"`

	DiscountID string    `bun:"discount_id,pk" json:"discount_id"`
	GuestID    string    `bun:"guest_id,unique,notnull" json:"guest_id"`
	EmailSent  bool      `bun:"email_sent,notnull" json:"email_sent"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}
