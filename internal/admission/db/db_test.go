package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-visitpass/internal/admission/db"
	"ms-visitpass/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	// Create required tables
	for _, model := range []interface{}{
		(*models.Guest)(nil),
		(*models.Invitation)(nil),
		(*models.Visit)(nil),
		(*models.Acceptance)(nil),
		(*models.Discount)(nil),
		(*models.Policy)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertGuest(t *testing.T, bunDB *bun.DB, email string) *models.Guest {
	guest := &models.Guest{
		GuestID:   uuid.New().String(),
		Email:     email,
		FullName:  "Test Guest",
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(guest).Exec(context.Background())
	require.NoError(t, err)
	return guest
}

func insertVisit(t *testing.T, bunDB *bun.DB, guestID, hostID string, checkedIn time.Time, expires time.Time) *models.Visit {
	visit := &models.Visit{
		VisitID:     uuid.New().String(),
		GuestID:     guestID,
		HostID:      hostID,
		CheckedInAt: &checkedIn,
		ExpiresAt:   expires,
		CreatedAt:   checkedIn,
	}
	_, err := bunDB.NewInsert().Model(visit).Exec(context.Background())
	require.NoError(t, err)
	return visit
}

func TestGetGuestByEmail(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "alice@x.com")

	found, err := store.GetGuestByEmail(context.Background(), "alice@x.com")
	assert.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, guest.GuestID, found.GuestID)

	// Unknown email is an absence, not an error
	found, err = store.GetGuestByEmail(context.Background(), "nobody@x.com")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpdateGuest(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "bob@x.com")
	guest.FullName = "Bob Renamed"
	guest.UpdatedAt = time.Now()

	err := store.UpdateGuest(context.Background(), guest)
	assert.NoError(t, err)

	found, err := store.GetGuestByEmail(context.Background(), "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob Renamed", found.FullName)
}

func TestActiveVisitQueries(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "carol@x.com")
	now := time.Now()

	// Active visit with host1, expired visit with host2
	active := insertVisit(t, bunDB, guest.GuestID, "host1", now.Add(-time.Hour), now.Add(11*time.Hour))
	insertVisit(t, bunDB, guest.GuestID, "host2", now.Add(-20*time.Hour), now.Add(-8*time.Hour))

	found, err := store.GetActiveVisit(context.Background(), "host1", guest.GuestID, now)
	assert.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, active.VisitID, found.VisitID)

	// Expired visit does not surface
	found, err = store.GetActiveVisit(context.Background(), "host2", guest.GuestID, now)
	assert.NoError(t, err)
	assert.Nil(t, found)

	count, err := store.CountActiveVisitsByHost(context.Background(), "host1", now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountActiveVisitsByHost(context.Background(), "host2", now)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetGuestVisitsSince(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "dan@x.com")
	now := time.Now()

	// Two inside the window, one outside
	insertVisit(t, bunDB, guest.GuestID, "host1", now.Add(-5*24*time.Hour), now.Add(-5*24*time.Hour).Add(12*time.Hour))
	insertVisit(t, bunDB, guest.GuestID, "host2", now.Add(-20*24*time.Hour), now.Add(-20*24*time.Hour).Add(12*time.Hour))
	insertVisit(t, bunDB, guest.GuestID, "host1", now.Add(-40*24*time.Hour), now.Add(-40*24*time.Hour).Add(12*time.Hour))

	visits, err := store.GetGuestVisitsSince(context.Background(), guest.GuestID, now.Add(-30*24*time.Hour))
	assert.NoError(t, err)
	require.Len(t, visits, 2)
	// Oldest first
	assert.True(t, visits[0].CheckedInAt.Before(*visits[1].CheckedInAt))

	lifetime, err := store.CountGuestLifetimeVisits(context.Background(), guest.GuestID)
	assert.NoError(t, err)
	assert.Equal(t, 3, lifetime)
}

func TestCreateVisitTransitionsInvitation(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "erin@x.com")
	invitation := &models.Invitation{
		InvitationID: uuid.New().String(),
		HostID:       "host1",
		GuestID:      guest.GuestID,
		VisitDate:    time.Now(),
		Status:       models.InvitationActivated,
		CreatedAt:    time.Now(),
	}
	_, err := bunDB.NewInsert().Model(invitation).Exec(context.Background())
	require.NoError(t, err)

	now := time.Now()
	visit := &models.Visit{
		VisitID:      uuid.New().String(),
		GuestID:      guest.GuestID,
		HostID:       "host1",
		InvitationID: invitation.InvitationID,
		CheckedInAt:  &now,
		ExpiresAt:    now.Add(12 * time.Hour),
		CreatedAt:    now,
	}
	err = store.CreateVisit(context.Background(), visit)
	assert.NoError(t, err)

	var stored models.Invitation
	err = bunDB.NewSelect().Model(&stored).
		Where("invitation_id = ?", invitation.InvitationID).
		Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCheckedIn, stored.Status)
}

func TestAcceptanceQueries(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "fay@x.com")
	now := time.Now()

	has, err := store.HasUnexpiredAcceptance(context.Background(), guest.GuestID, now)
	assert.NoError(t, err)
	assert.False(t, has)

	// Expired acceptance does not count
	expired := now.Add(-time.Hour)
	err = store.CreateAcceptance(context.Background(), &models.Acceptance{
		AcceptanceID: uuid.New().String(),
		GuestID:      guest.GuestID,
		AcceptedAt:   now.Add(-48 * time.Hour),
		ExpiresAt:    &expired,
	})
	require.NoError(t, err)

	has, err = store.HasUnexpiredAcceptance(context.Background(), guest.GuestID, now)
	assert.NoError(t, err)
	assert.False(t, has)

	// Open-ended acceptance counts
	err = store.CreateAcceptance(context.Background(), &models.Acceptance{
		AcceptanceID: uuid.New().String(),
		GuestID:      guest.GuestID,
		AcceptedAt:   now,
	})
	require.NoError(t, err)

	has, err = store.HasUnexpiredAcceptance(context.Background(), guest.GuestID, now)
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestDiscountQueries(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	guest := insertGuest(t, bunDB, "gus@x.com")

	found, err := store.GetDiscountByGuest(context.Background(), guest.GuestID)
	assert.NoError(t, err)
	assert.Nil(t, found)

	discount := &models.Discount{
		DiscountID: uuid.New().String(),
		GuestID:    guest.GuestID,
		EmailSent:  false,
		CreatedAt:  time.Now(),
	}
	err = store.CreateDiscount(context.Background(), discount)
	assert.NoError(t, err)

	err = store.MarkDiscountEmailSent(context.Background(), discount.DiscountID)
	assert.NoError(t, err)

	found, err = store.GetDiscountByGuest(context.Background(), guest.GuestID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.EmailSent)
}

func TestPolicyUpsert(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	policy, err := store.GetPolicy(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, policy)

	err = store.UpdatePolicy(context.Background(), &models.Policy{
		ID:                  models.PolicyRowID,
		GuestMonthlyLimit:   3,
		HostConcurrentLimit: 3,
		UpdatedAt:           time.Now(),
	})
	assert.NoError(t, err)

	// Second write updates in place
	err = store.UpdatePolicy(context.Background(), &models.Policy{
		ID:                  models.PolicyRowID,
		GuestMonthlyLimit:   5,
		HostConcurrentLimit: 4,
		UpdatedAt:           time.Now(),
	})
	assert.NoError(t, err)

	policy, err = store.GetPolicy(context.Background())
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, 5, policy.GuestMonthlyLimit)
	assert.Equal(t, 4, policy.HostConcurrentLimit)
}
