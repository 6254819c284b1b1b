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

// GetHostByID → fetch the inviting host's user record, nil when unknown
func (d *DB) GetHostByID(ctx context.Context, hostID string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", hostID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetInvitationByID → fetch one invitation, nil when unknown
func (d *DB) GetInvitationByID(ctx context.Context, invitationID string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := d.Bun.NewSelect().
		Model(&invitation).
		Where("invitation_id = ?", invitationID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// CreateInvitation → insert new invitation
func (d *DB) CreateInvitation(ctx context.Context, invitation *models.Invitation) error {
	_, err := d.Bun.NewInsert().Model(invitation).Exec(ctx)
	return err
}

// UpdateInvitationStatus → move an invitation through its lifecycle
func (d *DB) UpdateInvitationStatus(ctx context.Context, invitationID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Invitation)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("invitation_id = ?", invitationID).
		Exec(ctx)
	return err
}

// CreateAcceptance → record the guest's agreement to the visitor terms
func (d *DB) CreateAcceptance(ctx context.Context, acceptance *models.Acceptance) error {
	_, err := d.Bun.NewInsert().Model(acceptance).Exec(ctx)
	return err
}
