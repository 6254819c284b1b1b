package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-visitpass/internal/config"
	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/models"
	"ms-visitpass/internal/qr"
	"ms-visitpass/internal/utils"
)

var (
	ErrInvitationNotFound = errors.New("invitations: invitation not found")
	ErrInvitationClosed   = errors.New("invitations: invitation already checked in or expired")
)

// DBLayer is what invitation issuance needs from the store. Lookups return
// (nil, nil) when no row exists.
type DBLayer interface {
	GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error)
	CreateGuest(ctx context.Context, guest *models.Guest) error
	GetHostByID(ctx context.Context, hostID string) (*models.User, error)
	GetInvitationByID(ctx context.Context, invitationID string) (*models.Invitation, error)
	CreateInvitation(ctx context.Context, invitation *models.Invitation) error
	UpdateInvitationStatus(ctx context.Context, invitationID, status string) error
	CreateAcceptance(ctx context.Context, acceptance *models.Acceptance) error
}

// Notifier delivers the invitation email. A delivery failure never undoes
// the invitation.
type Notifier interface {
	SendInvitation(ctx context.Context, guestEmail, guestName, hostName, invitationID string) (messageID string, err error)
}

type CreateRequest struct {
	GuestEmail string    `json:"guest_email"`
	GuestName  string    `json:"guest_name"`
	VisitDate  time.Time `json:"visit_date"`
}

// IssuedInvitation is the creation result: the stored row plus the minted
// QR credential the guest will present at the gate.
type IssuedInvitation struct {
	Invitation *models.Invitation `json:"invitation"`
	Token      string             `json:"token"`
	QRImage    []byte             `json:"qr_image"`
}

type Service struct {
	DB        DBLayer
	Notifier  Notifier
	Generator *qr.Generator
	Logger    *logger.Logger
	Config    config.AdmissionConfig
}

func NewService(db DBLayer, notifier Notifier, generator *qr.Generator, cfg config.AdmissionConfig, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Notifier:  notifier,
		Generator: generator,
		Logger:    log,
		Config:    cfg,
	}
}

// CreateInvitation issues a PENDING invitation for a guest and mints their
// single-guest QR credential. The invited guest does not get a terms
// acceptance here; that happens when they accept via the invitation link.
func (s *Service) CreateInvitation(ctx context.Context, hostID string, req CreateRequest) (*IssuedInvitation, error) {
	if req.GuestEmail == "" {
		return nil, fmt.Errorf("guest_email is required")
	}

	guest, err := s.DB.GetGuestByEmail(ctx, req.GuestEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up guest %s: %w", req.GuestEmail, err)
	}
	now := time.Now()
	if guest == nil {
		fullName := req.GuestName
		if fullName == "" {
			fullName = req.GuestEmail
		}
		guest = &models.Guest{
			GuestID:   utils.GenerateUUID(),
			Email:     req.GuestEmail,
			FullName:  fullName,
			CreatedAt: now,
		}
		if err := s.DB.CreateGuest(ctx, guest); err != nil {
			return nil, fmt.Errorf("failed to create guest %s: %w", req.GuestEmail, err)
		}
	}

	qrExpires := now.Add(s.Config.QRTokenTTL)
	invitation := &models.Invitation{
		InvitationID: utils.GenerateUUID(),
		HostID:       hostID,
		GuestID:      guest.GuestID,
		VisitDate:    req.VisitDate,
		Status:       models.InvitationPending,
		QRExpiresAt:  &qrExpires,
		CreatedAt:    now,
	}
	if err := s.DB.CreateInvitation(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	token := qr.SingleGuestToken{
		InvitationID: invitation.InvitationID,
		GuestEmail:   guest.Email,
		HostID:       hostID,
		GuestName:    guest.FullName,
		IssuedAt:     now.Unix(),
		ExpiresAt:    qrExpires.Unix(),
	}
	encoded, err := qr.EncodeInvitationToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invitation token: %w", err)
	}
	image, err := s.Generator.GenerateInvitationQR(token)
	if err != nil {
		return nil, fmt.Errorf("failed to render invitation QR: %w", err)
	}

	s.log().Info("API", fmt.Sprintf("invitation %s created for guest %s by host %s", invitation.InvitationID, guest.GuestID, hostID))

	// Email delivery is best-effort; the invitation stands either way.
	if s.Notifier != nil {
		hostName := hostID
		if host, hostErr := s.DB.GetHostByID(ctx, hostID); hostErr == nil && host != nil {
			hostName = host.FullName
		}
		messageID, sendErr := s.Notifier.SendInvitation(ctx, guest.Email, guest.FullName, hostName, invitation.InvitationID)
		if sendErr != nil {
			s.log().Error("NOTIFY", fmt.Sprintf("invitation email failed for %s: %v", invitation.InvitationID, sendErr))
		} else {
			s.log().LogNotify("INVITATION_SENT", guest.Email, messageID)
		}
	}

	return &IssuedInvitation{Invitation: invitation, Token: encoded, QRImage: image}, nil
}

// AcceptTerms records the invited guest's agreement and activates the
// invitation. Accepting an already activated invitation just adds a fresh
// acceptance.
func (s *Service) AcceptTerms(ctx context.Context, invitationID string) (*models.Invitation, error) {
	invitation, err := s.DB.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation %s: %w", invitationID, err)
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}
	if invitation.Status == models.InvitationCheckedIn || invitation.Status == models.InvitationExpired {
		return nil, ErrInvitationClosed
	}

	acceptance := &models.Acceptance{
		AcceptanceID: utils.GenerateUUID(),
		GuestID:      invitation.GuestID,
		InvitationID: invitation.InvitationID,
		AcceptedAt:   time.Now(),
	}
	if err := s.DB.CreateAcceptance(ctx, acceptance); err != nil {
		return nil, fmt.Errorf("failed to record acceptance: %w", err)
	}

	if invitation.Status == models.InvitationPending {
		if err := s.DB.UpdateInvitationStatus(ctx, invitation.InvitationID, models.InvitationActivated); err != nil {
			return nil, fmt.Errorf("failed to activate invitation: %w", err)
		}
		invitation.Status = models.InvitationActivated
	}

	s.log().Info("API", fmt.Sprintf("terms accepted for invitation %s by guest %s", invitation.InvitationID, invitation.GuestID))
	return invitation, nil
}

func (s *Service) log() *logger.Logger {
	if s.Logger == nil {
		s.Logger = logger.NewLogger()
	}
	return s.Logger
}
