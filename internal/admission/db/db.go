package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-visitpass/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- GUESTS ----------------

// GetGuestByEmail → fetch one guest by email, nil when unknown
func (d *DB) GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	var guest models.Guest
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// CreateGuest → insert new guest
func (d *DB) CreateGuest(ctx context.Context, guest *models.Guest) error {
	_, err := d.Bun.NewInsert().Model(guest).Exec(ctx)
	return err
}

// UpdateGuest → update mutable profile fields
func (d *DB) UpdateGuest(ctx context.Context, guest *models.Guest) error {
	_, err := d.Bun.NewUpdate().
		Model(guest).
		Column("full_name", "country", "company", "updated_at").
		Where("guest_id = ?", guest.GuestID).
		Exec(ctx)
	return err
}

// ---------------- ACCEPTANCES ----------------

func (d *DB) CreateAcceptance(ctx context.Context, acceptance *models.Acceptance) error {
	_, err := d.Bun.NewInsert().Model(acceptance).Exec(ctx)
	return err
}

// HasUnexpiredAcceptance reports whether the guest holds any terms
// acceptance that has not expired. A NULL expiry never expires.
func (d *DB) HasUnexpiredAcceptance(ctx context.Context, guestID string, now time.Time) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Acceptance)(nil)).
		Where("guest_id = ?", guestID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------- VISITS ----------------

// GetActiveVisit → the guest's unexpired visit with this host, nil when none
func (d *DB) GetActiveVisit(ctx context.Context, hostID, guestID string, now time.Time) (*models.Visit, error) {
	var visit models.Visit
	err := d.Bun.NewSelect().
		Model(&visit).
		Where("host_id = ?", hostID).
		Where("guest_id = ?", guestID).
		Where("checked_in_at IS NOT NULL").
		Where("expires_at > ?", now).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// CountActiveVisitsByHost → how many unexpired visits the host carries now
func (d *DB) CountActiveVisitsByHost(ctx context.Context, hostID string, now time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Visit)(nil)).
		Where("host_id = ?", hostID).
		Where("checked_in_at IS NOT NULL").
		Where("expires_at > ?", now).
		Count(ctx)
}

// GetGuestVisitsSince → the guest's checked-in visits after the cutoff,
// any host
func (d *DB) GetGuestVisitsSince(ctx context.Context, guestID string, since time.Time) ([]models.Visit, error) {
	var visits []models.Visit
	err := d.Bun.NewSelect().
		Model(&visits).
		Where("guest_id = ?", guestID).
		Where("checked_in_at IS NOT NULL").
		Where("checked_in_at >= ?", since).
		Order("checked_in_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return visits, nil
}

// CreateVisit inserts the visit and, when it references an invitation,
// moves that invitation to CHECKED_IN in the same transaction.
func (d *DB) CreateVisit(ctx context.Context, visit *models.Visit) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(visit).Exec(ctx); err != nil {
			return err
		}
		if visit.InvitationID != "" {
			_, err := tx.NewUpdate().
				Model((*models.Invitation)(nil)).
				Set("status = ?", models.InvitationCheckedIn).
				Set("updated_at = ?", time.Now()).
				Where("invitation_id = ?", visit.InvitationID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CountGuestLifetimeVisits → all checked-in visits the guest has ever had
func (d *DB) CountGuestLifetimeVisits(ctx context.Context, guestID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Visit)(nil)).
		Where("guest_id = ?", guestID).
		Where("checked_in_at IS NOT NULL").
		Count(ctx)
}

// ---------------- DISCOUNTS ----------------

func (d *DB) GetDiscountByGuest(ctx context.Context, guestID string) (*models.Discount, error) {
	var discount models.Discount
	err := d.Bun.NewSelect().
		Model(&discount).
		Where("guest_id = ?", guestID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (d *DB) CreateDiscount(ctx context.Context, discount *models.Discount) error {
	_, err := d.Bun.NewInsert().Model(discount).Exec(ctx)
	return err
}

func (d *DB) MarkDiscountEmailSent(ctx context.Context, discountID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Discount)(nil)).
		Set("email_sent = ?", true).
		Where("discount_id = ?", discountID).
		Exec(ctx)
	return err
}

// ---------------- POLICY ----------------

func (d *DB) GetPolicy(ctx context.Context) (*models.Policy, error) {
	var policy models.Policy
	err := d.Bun.NewSelect().
		Model(&policy).
		Where("id = ?", models.PolicyRowID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// UpdatePolicy upserts the single policy row.
func (d *DB) UpdatePolicy(ctx context.Context, policy *models.Policy) error {
	_, err := d.Bun.NewInsert().
		Model(policy).
		On("CONFLICT (id) DO UPDATE").
		Set("guest_monthly_limit = EXCLUDED.guest_monthly_limit").
		Set("host_concurrent_limit = EXCLUDED.host_concurrent_limit").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
