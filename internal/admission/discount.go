package admission

import (
	"context"
	"fmt"
	"time"

	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/models"
	"ms-visitpass/internal/utils"
)

// DiscountVisitCount is the lifetime admission count that earns the reward.
const DiscountVisitCount = 3

type DiscountDBLayer interface {
	CountGuestLifetimeVisits(ctx context.Context, guestID string) (int, error)
	GetDiscountByGuest(ctx context.Context, guestID string) (*models.Discount, error)
	CreateDiscount(ctx context.Context, discount *models.Discount) error
	MarkDiscountEmailSent(ctx context.Context, discountID string) error
}

// DiscountTrigger idempotently detects the guest's 3rd lifetime admission
// and requests the reward notification exactly once.
type DiscountTrigger struct {
	DB        DiscountDBLayer
	Notifier  Notifier
	Publisher EventPublisher
	Logger    *logger.Logger
}

func NewDiscountTrigger(db DiscountDBLayer, notifier Notifier, publisher EventPublisher, log *logger.Logger) *DiscountTrigger {
	return &DiscountTrigger{DB: db, Notifier: notifier, Publisher: publisher, Logger: log}
}

// MaybeTrigger is called after a visit is durably created. Two guards must
// hold at once: the lifetime count equals exactly 3 (so a recount after the
// 4th visit never re-fires) and no discount row exists yet (so a retried
// admission never double-sends).
func (t *DiscountTrigger) MaybeTrigger(ctx context.Context, guest *models.Guest) (bool, error) {
	count, err := t.DB.CountGuestLifetimeVisits(ctx, guest.GuestID)
	if err != nil {
		return false, fmt.Errorf("failed to count lifetime visits: %w", err)
	}
	if count != DiscountVisitCount {
		return false, nil
	}

	existing, err := t.DB.GetDiscountByGuest(ctx, guest.GuestID)
	if err != nil {
		return false, fmt.Errorf("failed to look up existing discount: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	discount := &models.Discount{
		DiscountID: utils.GenerateUUID(),
		GuestID:    guest.GuestID,
		EmailSent:  false,
		CreatedAt:  time.Now(),
	}
	if err := t.DB.CreateDiscount(ctx, discount); err != nil {
		return false, fmt.Errorf("failed to create discount: %w", err)
	}
	t.log().LogAdmission("DISCOUNT", discount.DiscountID, fmt.Sprintf("3rd lifetime visit for guest %s", guest.GuestID))

	// Notification failure leaves EmailSent false for a later retry job;
	// the discount row itself stands.
	if t.Notifier != nil {
		messageID, sendErr := t.Notifier.SendDiscount(ctx, guest.Email, guest.FullName)
		if sendErr != nil {
			t.log().Error("NOTIFY", fmt.Sprintf("discount email failed for guest %s: %v", guest.GuestID, sendErr))
		} else {
			t.log().LogNotify("DISCOUNT_SENT", guest.Email, messageID)
			discount.EmailSent = true
			if markErr := t.DB.MarkDiscountEmailSent(ctx, discount.DiscountID); markErr != nil {
				t.log().Error("DATABASE", fmt.Sprintf("failed to mark discount %s as sent: %v", discount.DiscountID, markErr))
			}
		}
	}

	if t.Publisher != nil {
		if pubErr := t.Publisher.PublishDiscountIssued(*discount); pubErr != nil {
			t.log().Error("KAFKA", fmt.Sprintf("failed to publish discount event for %s: %v", discount.DiscountID, pubErr))
		}
	}

	return true, nil
}

func (t *DiscountTrigger) log() *logger.Logger {
	if t.Logger == nil {
		t.Logger = logger.NewLogger()
	}
	return t.Logger
}
