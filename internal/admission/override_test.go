package admission_test

import (
	"strings"
	"testing"

	"ms-visitpass/internal/admission"

	"github.com/stretchr/testify/assert"
)

func TestOverrideAuthorize(t *testing.T) {
	authority := admission.NewOverrideAuthority("building-secret")

	err := authority.Authorize("VIP escort for board meeting", "building-secret")
	assert.NoError(t, err)
}

func TestOverrideReasonValidation(t *testing.T) {
	authority := admission.NewOverrideAuthority("building-secret")

	err := authority.Authorize("", "building-secret")
	assert.ErrorIs(t, err, admission.ErrOverrideReasonRequired)

	err = authority.Authorize("too short", "building-secret")
	assert.ErrorIs(t, err, admission.ErrOverrideReasonTooShort)

	err = authority.Authorize(strings.Repeat("x", 501), "building-secret")
	assert.ErrorIs(t, err, admission.ErrOverrideReasonTooLong)

	// Boundary lengths are accepted
	assert.NoError(t, authority.Authorize(strings.Repeat("x", 10), "building-secret"))
	assert.NoError(t, authority.Authorize(strings.Repeat("x", 500), "building-secret"))
}

func TestOverrideCredentialValidation(t *testing.T) {
	authority := admission.NewOverrideAuthority("building-secret")

	err := authority.Authorize("VIP escort for board meeting", "wrong-secret")
	assert.ErrorIs(t, err, admission.ErrOverrideBadCredential)

	err = authority.Authorize("VIP escort for board meeting", "")
	assert.ErrorIs(t, err, admission.ErrOverrideBadCredential)

	// Reason problems are reported before the credential is checked, so a
	// denied override always states which gate failed.
	err = authority.Authorize("short", "wrong-secret")
	assert.ErrorIs(t, err, admission.ErrOverrideReasonTooShort)
}
