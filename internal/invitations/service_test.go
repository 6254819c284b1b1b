package invitations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-visitpass/internal/config"
	"ms-visitpass/internal/invitations"
	"ms-visitpass/internal/models"
	"ms-visitpass/internal/qr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDBLayer is a mock implementation of the DBLayer interface
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Guest), args.Error(1)
}

func (m *MockDBLayer) CreateGuest(ctx context.Context, guest *models.Guest) error {
	args := m.Called(ctx, guest)
	return args.Error(0)
}

func (m *MockDBLayer) GetHostByID(ctx context.Context, hostID string) (*models.User, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetInvitationByID(ctx context.Context, invitationID string) (*models.Invitation, error) {
	args := m.Called(ctx, invitationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockDBLayer) CreateInvitation(ctx context.Context, invitation *models.Invitation) error {
	args := m.Called(ctx, invitation)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateInvitationStatus(ctx context.Context, invitationID, status string) error {
	args := m.Called(ctx, invitationID, status)
	return args.Error(0)
}

func (m *MockDBLayer) CreateAcceptance(ctx context.Context, acceptance *models.Acceptance) error {
	args := m.Called(ctx, acceptance)
	return args.Error(0)
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendInvitation(ctx context.Context, guestEmail, guestName, hostName, invitationID string) (string, error) {
	args := m.Called(ctx, guestEmail, guestName, hostName, invitationID)
	return args.String(0), args.Error(1)
}

func testConfig() config.AdmissionConfig {
	return config.AdmissionConfig{QRTokenTTL: 48 * time.Hour}
}

func TestCreateInvitation(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockNotifier := new(MockNotifier)
	guest := &models.Guest{GuestID: uuid.NewString(), Email: "guest@x.com", FullName: "Guest"}

	mockDB.On("GetGuestByEmail", mock.Anything, guest.Email).Return(guest, nil)
	mockDB.On("CreateInvitation", mock.Anything, mock.MatchedBy(func(inv *models.Invitation) bool {
		return inv.GuestID == guest.GuestID && inv.HostID == "host1" &&
			inv.Status == models.InvitationPending && inv.QRExpiresAt != nil
	})).Return(nil)
	mockDB.On("GetHostByID", mock.Anything, "host1").Return(&models.User{ID: "host1", FullName: "Host One"}, nil)
	mockNotifier.On("SendInvitation", mock.Anything, guest.Email, guest.FullName, "Host One", mock.Anything).
		Return("msg-1", nil)

	svc := invitations.NewService(mockDB, mockNotifier, qr.NewGenerator(), testConfig(), nil)

	issued, err := svc.CreateInvitation(context.Background(), "host1", invitations.CreateRequest{
		GuestEmail: guest.Email,
		GuestName:  guest.FullName,
		VisitDate:  time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	require.NotNil(t, issued.Invitation)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.QRImage)
	mockDB.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)

	// The minted token decodes back to this invitation
	payload, err := qr.Decode(issued.Token, time.Now())
	require.NoError(t, err)
	require.Equal(t, qr.KindSingle, payload.Kind)
	assert.Equal(t, issued.Invitation.InvitationID, payload.Single.InvitationID)
	assert.Equal(t, guest.Email, payload.Single.GuestEmail)
	assert.Equal(t, "host1", payload.Single.HostID)
}

func TestCreateInvitationNewGuest(t *testing.T) {
	mockDB := new(MockDBLayer)

	mockDB.On("GetGuestByEmail", mock.Anything, "new@x.com").Return(nil, nil)
	mockDB.On("CreateGuest", mock.Anything, mock.MatchedBy(func(g *models.Guest) bool {
		return g.Email == "new@x.com" && g.FullName == "Newcomer"
	})).Return(nil)
	mockDB.On("CreateInvitation", mock.Anything, mock.Anything).Return(nil)

	svc := invitations.NewService(mockDB, nil, qr.NewGenerator(), testConfig(), nil)

	issued, err := svc.CreateInvitation(context.Background(), "host1", invitations.CreateRequest{
		GuestEmail: "new@x.com",
		GuestName:  "Newcomer",
		VisitDate:  time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	mockDB.AssertExpectations(t)
}

func TestCreateInvitationSurvivesNotifyFailure(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockNotifier := new(MockNotifier)
	guest := &models.Guest{GuestID: uuid.NewString(), Email: "guest@x.com", FullName: "Guest"}

	mockDB.On("GetGuestByEmail", mock.Anything, guest.Email).Return(guest, nil)
	mockDB.On("CreateInvitation", mock.Anything, mock.Anything).Return(nil)
	mockDB.On("GetHostByID", mock.Anything, "host1").Return(nil, nil)
	mockNotifier.On("SendInvitation", mock.Anything, guest.Email, guest.FullName, "host1", mock.Anything).
		Return("", errors.New("smtp relay down"))

	svc := invitations.NewService(mockDB, mockNotifier, qr.NewGenerator(), testConfig(), nil)

	issued, err := svc.CreateInvitation(context.Background(), "host1", invitations.CreateRequest{
		GuestEmail: guest.Email,
		VisitDate:  time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.NotNil(t, issued.Invitation)
}

func TestAcceptTerms(t *testing.T) {
	mockDB := new(MockDBLayer)
	invitation := &models.Invitation{
		InvitationID: uuid.NewString(),
		HostID:       "host1",
		GuestID:      uuid.NewString(),
		Status:       models.InvitationPending,
	}

	mockDB.On("GetInvitationByID", mock.Anything, invitation.InvitationID).Return(invitation, nil)
	mockDB.On("CreateAcceptance", mock.Anything, mock.MatchedBy(func(a *models.Acceptance) bool {
		return a.GuestID == invitation.GuestID && a.InvitationID == invitation.InvitationID
	})).Return(nil)
	mockDB.On("UpdateInvitationStatus", mock.Anything, invitation.InvitationID, models.InvitationActivated).Return(nil)

	svc := invitations.NewService(mockDB, nil, qr.NewGenerator(), testConfig(), nil)

	updated, err := svc.AcceptTerms(context.Background(), invitation.InvitationID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationActivated, updated.Status)
	mockDB.AssertExpectations(t)
}

func TestAcceptTermsUnknownInvitation(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockDB.On("GetInvitationByID", mock.Anything, "missing").Return(nil, nil)

	svc := invitations.NewService(mockDB, nil, qr.NewGenerator(), testConfig(), nil)

	_, err := svc.AcceptTerms(context.Background(), "missing")
	assert.ErrorIs(t, err, invitations.ErrInvitationNotFound)
}

func TestAcceptTermsClosedInvitation(t *testing.T) {
	mockDB := new(MockDBLayer)
	invitation := &models.Invitation{
		InvitationID: uuid.NewString(),
		GuestID:      uuid.NewString(),
		Status:       models.InvitationCheckedIn,
	}
	mockDB.On("GetInvitationByID", mock.Anything, invitation.InvitationID).Return(invitation, nil)

	svc := invitations.NewService(mockDB, nil, qr.NewGenerator(), testConfig(), nil)

	_, err := svc.AcceptTerms(context.Background(), invitation.InvitationID)
	assert.ErrorIs(t, err, invitations.ErrInvitationClosed)
	mockDB.AssertNotCalled(t, "CreateAcceptance", mock.Anything, mock.Anything)
}
