package admission

import (
	"fmt"
	"time"
)

// RollingWindow is the trailing window over which guest admissions are
// counted. It is 30 days from "now", not a calendar month.
const RollingWindow = 30 * 24 * time.Hour

// Machine-readable reason codes carried on every rejection so the kiosk
// UI can render specific guidance.
const (
	ReasonAfterCutoff       = "after_cutoff"
	ReasonCredentialExpired = "credential_expired"
	ReasonGuestBlacklisted  = "guest_blacklisted"
	ReasonHostAtCapacity    = "host_at_capacity"
	ReasonGuestMonthlyLimit = "guest_monthly_limit"
	ReasonTermsNotAccepted  = "terms_not_accepted"
)

// RuleInput is the snapshot the engine assembles before evaluation. Counts
// are re-read from the store at decision time, never cached.
type RuleInput struct {
	Now          time.Time
	CutoffHour   int
	CutoffMinute int

	// CredentialExpiry is nil for credentials without one (batch QR).
	CredentialExpiry *time.Time

	HostActiveCount int
	HostLimit       int

	GuestWindowCount  int
	GuestLimit        int
	OldestWindowVisit *time.Time

	BlacklistedAt *time.Time
	HasAcceptance bool
}

type RuleResult struct {
	Pass           bool
	ReasonCode     string
	Message        string
	Overridable    bool
	NextEligibleAt *time.Time
}

func pass() RuleResult {
	return RuleResult{Pass: true}
}

// CheckTimeCutoff fails once local time reaches the configured cutoff.
// Not overridable.
func CheckTimeCutoff(in RuleInput) RuleResult {
	cutoff := time.Date(in.Now.Year(), in.Now.Month(), in.Now.Day(),
		in.CutoffHour, in.CutoffMinute, 0, 0, in.Now.Location())
	if !in.Now.Before(cutoff) {
		return RuleResult{
			ReasonCode: ReasonAfterCutoff,
			Message:    fmt.Sprintf("Check-ins are closed after %02d:%02d", in.CutoffHour, in.CutoffMinute),
		}
	}
	return pass()
}

// CheckCredentialExpiry fails when a presented credential carries an expiry
// in the past. Credentials without an expiry always pass. Not overridable.
func CheckCredentialExpiry(in RuleInput) RuleResult {
	if in.CredentialExpiry != nil && !in.Now.Before(*in.CredentialExpiry) {
		return RuleResult{
			ReasonCode: ReasonCredentialExpired,
			Message:    "The presented QR credential has expired",
		}
	}
	return pass()
}

// CheckBlacklist fails for guests carrying a blacklist marker. Not
// overridable: the override path in this system covers capacity only.
func CheckBlacklist(in RuleInput) RuleResult {
	if in.BlacklistedAt != nil {
		return RuleResult{
			ReasonCode: ReasonGuestBlacklisted,
			Message:    "Guest is not permitted on the premises",
		}
	}
	return pass()
}

// CheckHostConcurrency fails when the host already has the configured
// number of active visits. This is the one overridable rule.
func CheckHostConcurrency(in RuleInput) RuleResult {
	if in.HostActiveCount >= in.HostLimit {
		return RuleResult{
			ReasonCode:  ReasonHostAtCapacity,
			Message:     fmt.Sprintf("Host already has %d of %d active visits", in.HostActiveCount, in.HostLimit),
			Overridable: true,
		}
	}
	return pass()
}

// CheckGuestRollingLimit fails when the guest has reached the rolling
// 30-day limit. On failure it reports when the oldest counted visit rolls
// out of the window so the guest can be told when to return.
func CheckGuestRollingLimit(in RuleInput) RuleResult {
	if in.GuestWindowCount >= in.GuestLimit {
		result := RuleResult{
			ReasonCode: ReasonGuestMonthlyLimit,
			Message:    fmt.Sprintf("Guest reached the limit of %d visits in 30 days", in.GuestLimit),
		}
		if in.OldestWindowVisit != nil {
			next := in.OldestWindowVisit.Add(RollingWindow)
			result.NextEligibleAt = &next
		}
		return result
	}
	return pass()
}

// CheckTermsAcceptance fails when the guest holds no unexpired acceptance.
// Not overridable: agreement must precede physical admission.
func CheckTermsAcceptance(in RuleInput) RuleResult {
	if !in.HasAcceptance {
		return RuleResult{
			ReasonCode: ReasonTermsNotAccepted,
			Message:    "Guest has not accepted the visitor terms",
		}
	}
	return pass()
}

// EvaluateRules runs every rule in UX order (cheapest and most
// authoritative first) and returns the failures. All rules always run so
// the engine can tell a capacity-only failure apart from a terminal one.
func EvaluateRules(in RuleInput) []RuleResult {
	checks := []func(RuleInput) RuleResult{
		CheckTimeCutoff,
		CheckCredentialExpiry,
		CheckBlacklist,
		CheckHostConcurrency,
		CheckGuestRollingLimit,
		CheckTermsAcceptance,
	}

	var failures []RuleResult
	for _, check := range checks {
		if result := check(in); !result.Pass {
			failures = append(failures, result)
		}
	}
	return failures
}
