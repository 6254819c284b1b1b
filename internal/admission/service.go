package admission

import (
	"context"
	"fmt"
	"time"

	"ms-visitpass/internal/config"
	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/models"
	"ms-visitpass/internal/qr"
	"ms-visitpass/internal/utils"
)

// DBLayer is everything the engine needs from the persistent store. Lookup
// methods return (nil, nil) when no row exists; an error always means the
// store itself failed.
type DBLayer interface {
	GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error)
	CreateGuest(ctx context.Context, guest *models.Guest) error
	UpdateGuest(ctx context.Context, guest *models.Guest) error
	CreateAcceptance(ctx context.Context, acceptance *models.Acceptance) error
	HasUnexpiredAcceptance(ctx context.Context, guestID string, now time.Time) (bool, error)
	GetActiveVisit(ctx context.Context, hostID, guestID string, now time.Time) (*models.Visit, error)
	CountActiveVisitsByHost(ctx context.Context, hostID string, now time.Time) (int, error)
	GetGuestVisitsSince(ctx context.Context, guestID string, since time.Time) ([]models.Visit, error)
	// CreateVisit persists the visit and, when it references an invitation,
	// transitions that invitation to CHECKED_IN in the same transaction.
	CreateVisit(ctx context.Context, visit *models.Visit) error
	GetPolicy(ctx context.Context) (*models.Policy, error)
	UpdatePolicy(ctx context.Context, policy *models.Policy) error
}

// Notifier is the external notification collaborator. Failures are logged
// by callers and never propagate into an admission result.
type Notifier interface {
	SendDiscount(ctx context.Context, guestEmail, guestName string) (messageID string, err error)
}

// EventPublisher streams visit lifecycle events. Publish failures are
// logged, never fatal.
type EventPublisher interface {
	PublishVisitCheckedIn(visit models.Visit) error
	PublishOverrideRecorded(visit models.Visit) error
	PublishDiscountIssued(discount models.Discount) error
}

// HostLocker serializes concurrent admissions against the same host so the
// capacity recount and visit insert act like a conditional increment. The
// lock is best-effort: when it cannot be taken the engine degrades to the
// documented check-then-act behavior instead of refusing admission.
type HostLocker interface {
	LockHost(ctx context.Context, hostID, token string) (bool, error)
	UnlockHost(ctx context.Context, hostID, token string) error
}

type Status string

const (
	StatusAdmitted         Status = "admitted"
	StatusReEntry          Status = "re-entry"
	StatusOverrideRequired Status = "override-required"
	StatusRejected         Status = "rejected"
	StatusOverrideDenied   Status = "override-denied"
)

// Request is one admission attempt for one guest.
type Request struct {
	HostID     string
	OperatorID string

	GuestEmail string
	GuestName  string

	// Set when the guest presented a legacy invitation token.
	InvitationID     string
	CredentialExpiry *time.Time

	OverrideReason     string
	OverrideCredential string
}

// Result is the single terminal outcome of an admission attempt. Every
// attempt resolves to exactly one status; rule violations are outcomes
// here, not errors.
type Result struct {
	Status            Status        `json:"status"`
	Visit             *models.Visit `json:"visit,omitempty"`
	ReasonCode        string        `json:"reason_code,omitempty"`
	Message           string        `json:"message,omitempty"`
	NextEligibleAt    *time.Time    `json:"next_eligible_at,omitempty"`
	CurrentCount      int           `json:"current_count,omitempty"`
	MaxCount          int           `json:"max_count,omitempty"`
	DiscountTriggered bool          `json:"discount_triggered,omitempty"`
}

// BatchEntryResult pairs a batch guest with their individual outcome.
type BatchEntryResult struct {
	GuestEmail string `json:"guest_email"`
	Result
}

type Service struct {
	DB        DBLayer
	Locker    HostLocker
	Publisher EventPublisher
	Discounts *DiscountTrigger
	Override  *OverrideAuthority
	Logger    *logger.Logger
	Config    config.AdmissionConfig
}

func NewService(db DBLayer, locker HostLocker, publisher EventPublisher, discounts *DiscountTrigger, override *OverrideAuthority, cfg config.AdmissionConfig, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Locker:    locker,
		Publisher: publisher,
		Discounts: discounts,
		Override:  override,
		Logger:    log,
		Config:    cfg,
	}
}

// Admit decides whether the guest may enter right now and fires the
// side effects (visit creation, invitation transition, discount check)
// exactly once when they may.
func (s *Service) Admit(ctx context.Context, req Request) (*Result, error) {
	now := time.Now()

	guest, err := s.resolveGuest(ctx, req.GuestEmail, req.GuestName, now)
	if err != nil {
		return nil, err
	}

	// Re-entry: an active visit with this host means no new occupancy, so
	// a repeat scan short-circuits every rule.
	existing, err := s.DB.GetActiveVisit(ctx, req.HostID, guest.GuestID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active visit: %w", err)
	}
	if existing != nil {
		s.log().LogAdmission("RE_ENTRY", existing.VisitID, fmt.Sprintf("guest %s re-entered with host %s", guest.GuestID, req.HostID))
		return &Result{Status: StatusReEntry, Visit: existing}, nil
	}

	// Serialize against other admissions for the same host while the
	// capacity count is read and the visit created.
	lockToken := utils.GenerateUUID()
	if s.Locker != nil {
		ok, lockErr := s.Locker.LockHost(ctx, req.HostID, lockToken)
		if lockErr != nil || !ok {
			// Accepted risk: fall back to check-then-act rather than
			// refusing the admission.
			s.log().Warn("ADMISSION", fmt.Sprintf("host lock unavailable for %s, proceeding unlocked", req.HostID))
		} else {
			defer func() {
				if unlockErr := s.Locker.UnlockHost(ctx, req.HostID, lockToken); unlockErr != nil {
					s.log().Warn("ADMISSION", fmt.Sprintf("failed to release host lock for %s: %v", req.HostID, unlockErr))
				}
			}()
		}
	}

	input, err := s.ruleInput(ctx, req, guest, now)
	if err != nil {
		return nil, err
	}

	failures := EvaluateRules(input)

	if len(failures) == 0 {
		return s.createVisit(ctx, req, guest, now, "", "")
	}

	if len(failures) == 1 && failures[0].ReasonCode == ReasonHostAtCapacity {
		if req.OverrideReason == "" && req.OverrideCredential == "" {
			// Not an error: a distinct outcome the operator must resolve.
			return &Result{
				Status:       StatusOverrideRequired,
				ReasonCode:   ReasonHostAtCapacity,
				Message:      failures[0].Message,
				CurrentCount: input.HostActiveCount,
				MaxCount:     input.HostLimit,
			}, nil
		}

		if authErr := s.Override.Authorize(req.OverrideReason, req.OverrideCredential); authErr != nil {
			s.log().LogSecurity("OVERRIDE_DENIED", fmt.Sprintf("host %s, operator %s: %v", req.HostID, req.OperatorID, authErr))
			return &Result{Status: StatusOverrideDenied, Message: authErr.Error()}, nil
		}

		s.log().LogSecurity("OVERRIDE_GRANTED", fmt.Sprintf("host %s capacity bypass by %s", req.HostID, req.OperatorID))
		return s.createVisit(ctx, req, guest, now, req.OverrideReason, req.OperatorID)
	}

	// Terminal rejection. Report the first non-overridable failure so a
	// capacity message never masks a hard stop.
	failure := failures[0]
	for _, f := range failures {
		if !f.Overridable {
			failure = f
			break
		}
	}
	s.log().LogAdmission("REJECTED", guest.GuestID, failure.ReasonCode)
	return &Result{
		Status:         StatusRejected,
		ReasonCode:     failure.ReasonCode,
		Message:        failure.Message,
		NextEligibleAt: failure.NextEligibleAt,
	}, nil
}

// AdmitBatch runs one admission per guest of a batch QR. Each guest gets
// an independent outcome; an infrastructure failure aborts the batch.
func (s *Service) AdmitBatch(ctx context.Context, req Request, guests []qr.BatchGuest) ([]BatchEntryResult, error) {
	results := make([]BatchEntryResult, 0, len(guests))
	for _, g := range guests {
		entry := req
		entry.GuestEmail = g.Email
		entry.GuestName = g.Name
		// Batch passes carry no invitation and no per-guest expiry.
		entry.InvitationID = ""
		entry.CredentialExpiry = nil

		result, err := s.Admit(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("batch admission failed for %s: %w", g.Email, err)
		}
		results = append(results, BatchEntryResult{GuestEmail: g.Email, Result: *result})
	}
	return results, nil
}

// Policy returns the effective policy, falling back to configured defaults
// until a row has been written.
func (s *Service) Policy(ctx context.Context) (*models.Policy, error) {
	policy, err := s.DB.GetPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if policy == nil {
		return &models.Policy{
			ID:                  models.PolicyRowID,
			GuestMonthlyLimit:   s.Config.DefaultGuestMonthlyLimit,
			HostConcurrentLimit: s.Config.DefaultHostConcurrentLimit,
		}, nil
	}
	return policy, nil
}

// UpdatePolicy validates and persists new limits.
func (s *Service) UpdatePolicy(ctx context.Context, guestMonthlyLimit, hostConcurrentLimit int) (*models.Policy, error) {
	policy := &models.Policy{
		ID:                  models.PolicyRowID,
		GuestMonthlyLimit:   guestMonthlyLimit,
		HostConcurrentLimit: hostConcurrentLimit,
		UpdatedAt:           time.Now(),
	}
	if !policy.Validate() {
		return nil, fmt.Errorf("policy limits out of bounds: guest %d-%d, host %d-%d",
			models.GuestMonthlyLimitMin, models.GuestMonthlyLimitMax,
			models.HostConcurrentLimitMin, models.HostConcurrentLimitMax)
	}
	if err := s.DB.UpdatePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	return policy, nil
}

// resolveGuest finds the guest by email or creates a minimal record. A new
// guest also gets a default acceptance so first-time batch-QR guests are
// not blocked purely by the absence of a prior terms record.
func (s *Service) resolveGuest(ctx context.Context, email, name string, now time.Time) (*models.Guest, error) {
	guest, err := s.DB.GetGuestByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up guest %s: %w", email, err)
	}

	if guest == nil {
		fullName := name
		if fullName == "" {
			fullName = email
		}
		guest = &models.Guest{
			GuestID:   utils.GenerateUUID(),
			Email:     email,
			FullName:  fullName,
			CreatedAt: now,
		}
		if err := s.DB.CreateGuest(ctx, guest); err != nil {
			return nil, fmt.Errorf("failed to create guest %s: %w", email, err)
		}
		acceptance := &models.Acceptance{
			AcceptanceID: utils.GenerateUUID(),
			GuestID:      guest.GuestID,
			AcceptedAt:   now,
		}
		if err := s.DB.CreateAcceptance(ctx, acceptance); err != nil {
			return nil, fmt.Errorf("failed to create default acceptance: %w", err)
		}
		return guest, nil
	}

	merged := models.MergeGuest(*guest, name)
	if merged.FullName != guest.FullName {
		if err := s.DB.UpdateGuest(ctx, &merged); err != nil {
			return nil, fmt.Errorf("failed to update guest %s: %w", email, err)
		}
	}
	return &merged, nil
}

// ruleInput re-reads every count at decision time. Nothing here is cached.
func (s *Service) ruleInput(ctx context.Context, req Request, guest *models.Guest, now time.Time) (RuleInput, error) {
	policy, err := s.Policy(ctx)
	if err != nil {
		return RuleInput{}, err
	}

	hostActive, err := s.DB.CountActiveVisitsByHost(ctx, req.HostID, now)
	if err != nil {
		return RuleInput{}, fmt.Errorf("failed to count active visits for host %s: %w", req.HostID, err)
	}

	windowVisits, err := s.DB.GetGuestVisitsSince(ctx, guest.GuestID, now.Add(-RollingWindow))
	if err != nil {
		return RuleInput{}, fmt.Errorf("failed to load recent visits for guest %s: %w", guest.GuestID, err)
	}
	var oldest *time.Time
	for _, v := range windowVisits {
		if v.CheckedInAt == nil {
			continue
		}
		if oldest == nil || v.CheckedInAt.Before(*oldest) {
			oldest = v.CheckedInAt
		}
	}

	hasAcceptance, err := s.DB.HasUnexpiredAcceptance(ctx, guest.GuestID, now)
	if err != nil {
		return RuleInput{}, fmt.Errorf("failed to check acceptances for guest %s: %w", guest.GuestID, err)
	}

	return RuleInput{
		Now:               now,
		CutoffHour:        s.Config.CutoffHour,
		CutoffMinute:      s.Config.CutoffMinute,
		CredentialExpiry:  req.CredentialExpiry,
		HostActiveCount:   hostActive,
		HostLimit:         policy.HostConcurrentLimit,
		GuestWindowCount:  len(windowVisits),
		GuestLimit:        policy.GuestMonthlyLimit,
		OldestWindowVisit: oldest,
		BlacklistedAt:     guest.BlacklistedAt,
		HasAcceptance:     hasAcceptance,
	}, nil
}

// createVisit persists the admission and fires the side effects. The visit
// insert (plus the invitation transition) is the only step allowed to fail
// the admission; events and the discount check are non-fatal.
func (s *Service) createVisit(ctx context.Context, req Request, guest *models.Guest, now time.Time, overrideReason, overrideBy string) (*Result, error) {
	checkedIn := now
	visit := &models.Visit{
		VisitID:        utils.GenerateVisitID(),
		GuestID:        guest.GuestID,
		HostID:         req.HostID,
		InvitationID:   req.InvitationID,
		CheckedInAt:    &checkedIn,
		ExpiresAt:      now.Add(s.Config.VisitDuration),
		OverrideReason: overrideReason,
		OverrideBy:     overrideBy,
		CreatedAt:      now,
	}

	if err := s.DB.CreateVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to create visit: %w", err)
	}
	s.log().LogAdmission("CHECKED_IN", visit.VisitID, fmt.Sprintf("guest %s admitted by host %s", guest.GuestID, req.HostID))

	if s.Publisher != nil {
		var pubErr error
		if overrideReason != "" {
			pubErr = s.Publisher.PublishOverrideRecorded(*visit)
		} else {
			pubErr = s.Publisher.PublishVisitCheckedIn(*visit)
		}
		if pubErr != nil {
			s.log().Error("KAFKA", fmt.Sprintf("failed to publish visit event for %s: %v", visit.VisitID, pubErr))
		}
	}

	triggered := false
	if s.Discounts != nil {
		var discountErr error
		triggered, discountErr = s.Discounts.MaybeTrigger(ctx, guest)
		if discountErr != nil {
			// The visit is durable; a discount hiccup never rolls it back.
			s.log().Error("DISCOUNT", fmt.Sprintf("discount check failed for guest %s: %v", guest.GuestID, discountErr))
		}
	}

	return &Result{Status: StatusAdmitted, Visit: visit, DiscountTriggered: triggered}, nil
}

func (s *Service) log() *logger.Logger {
	if s.Logger == nil {
		s.Logger = logger.NewLogger()
	}
	return s.Logger
}
