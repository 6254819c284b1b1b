package admission

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// Override reason bounds: reasons must be substantive enough to audit but
// bounded for storage.
const (
	OverrideReasonMinLen = 10
	OverrideReasonMaxLen = 500
)

// Authorization failures. Each names whether the cause was the reason or
// the credential; the expected secret is never revealed.
var (
	ErrOverrideReasonRequired = errors.New("override reason is required")
	ErrOverrideReasonTooShort = errors.New("override reason must be at least 10 characters")
	ErrOverrideReasonTooLong  = errors.New("override reason must be at most 500 characters")
	ErrOverrideBadCredential  = errors.New("override credential does not match")
)

// OverrideAuthority is the stateless gate in front of the capacity bypass.
// It validates the human-supplied reason and credential; persisting the
// audit trail on the resulting visit is the caller's job.
type OverrideAuthority struct {
	secretDigest [32]byte
}

func NewOverrideAuthority(secret string) *OverrideAuthority {
	return &OverrideAuthority{secretDigest: sha256.Sum256([]byte(secret))}
}

// Authorize validates one override attempt. Every override is a fresh
// explicit act tied to a single admission; nothing is cached or persisted
// here. The credential comparison runs in constant time over SHA-256
// digests so credential length and content never leak through timing.
func (a *OverrideAuthority) Authorize(reason, credential string) error {
	if reason == "" {
		return ErrOverrideReasonRequired
	}
	if len(reason) < OverrideReasonMinLen {
		return ErrOverrideReasonTooShort
	}
	if len(reason) > OverrideReasonMaxLen {
		return ErrOverrideReasonTooLong
	}

	supplied := sha256.Sum256([]byte(credential))
	if subtle.ConstantTimeCompare(supplied[:], a.secretDigest[:]) != 1 {
		return ErrOverrideBadCredential
	}
	return nil
}
