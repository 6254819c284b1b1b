package qr

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Decode failures. Scanned input is untrusted and malformed payloads are
// routine (camera misreads, stale formats), so these are returned values,
// never panics. An expired token is distinct from an unreadable one so the
// kiosk UI can say "expired" instead of "unreadable".
var (
	ErrUnrecognizedPayload = errors.New("qr: unrecognized payload")
	ErrMalformedBatch      = errors.New("qr: batch contains a malformed guest entry")
	ErrTokenExpired        = errors.New("qr: token expired")
)

type PayloadKind int

const (
	KindSingle PayloadKind = iota + 1
	KindBatch
)

// BatchGuest is one entry of the batch wire format. Short keys keep the
// payload small enough for a scannable code.
type BatchGuest struct {
	Email string `json:"e"`
	Name  string `json:"n"`
}

type BatchPayload struct {
	Guests []BatchGuest `json:"guests"`
}

// SingleGuestToken is the legacy invitation token format. ExpiresAt and
// IssuedAt are unix seconds; ExpiresAt == 0 means the token never expires.
type SingleGuestToken struct {
	InvitationID string `json:"invitation_id"`
	GuestEmail   string `json:"guest_email"`
	HostID       string `json:"host_id"`
	GuestName    string `json:"guest_name,omitempty"`
	IssuedAt     int64  `json:"issued_at,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Expiry returns the token expiry as a time, or nil when the token does
// not expire (batch-derived and very old tokens carry no expiry).
func (t SingleGuestToken) Expiry() *time.Time {
	if t.ExpiresAt == 0 {
		return nil
	}
	exp := time.Unix(t.ExpiresAt, 0)
	return &exp
}

// Payload is the decoded result: exactly one of Single or Batch is set,
// discriminated by Kind.
type Payload struct {
	Kind   PayloadKind
	Single *SingleGuestToken
	Batch  *BatchPayload
}

// Decode turns an opaque scanned string into a typed payload. Formats are
// attempted in a fixed order: batch JSON, legacy single-guest JSON, then
// base64-wrapped legacy JSON. The chain exists because codes minted under
// a prior encoding must keep scanning while a newer one rolls out.
func Decode(raw string, now time.Time) (*Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrUnrecognizedPayload
	}

	if json.Valid([]byte(trimmed)) {
		return decodeJSON([]byte(trimmed), now)
	}

	// Not JSON: the only remaining known format is a base64-wrapped legacy
	// token. Bad base64 or bad inner JSON is a plain decode failure.
	decoded, ok := tryBase64(trimmed)
	if !ok {
		return nil, ErrUnrecognizedPayload
	}
	if !json.Valid(decoded) {
		return nil, ErrUnrecognizedPayload
	}
	token, err := decodeLegacyToken(decoded, now)
	if err != nil {
		return nil, err
	}
	return &Payload{Kind: KindSingle, Single: token}, nil
}

func decodeJSON(data []byte, now time.Time) (*Payload, error) {
	// Probe for the batch shape first. A pointer slice distinguishes
	// "guests field absent" from "guests field present but empty".
	var batchProbe struct {
		Guests *[]BatchGuest `json:"guests"`
	}
	if err := json.Unmarshal(data, &batchProbe); err == nil && batchProbe.Guests != nil {
		guests := *batchProbe.Guests
		if len(guests) == 0 {
			return nil, ErrMalformedBatch
		}
		// Fail closed: one malformed entry rejects the whole batch.
		for _, g := range guests {
			if g.Email == "" || g.Name == "" {
				return nil, ErrMalformedBatch
			}
		}
		return &Payload{Kind: KindBatch, Batch: &BatchPayload{Guests: guests}}, nil
	}

	token, err := decodeLegacyToken(data, now)
	if err != nil {
		return nil, err
	}
	return &Payload{Kind: KindSingle, Single: token}, nil
}

func decodeLegacyToken(data []byte, now time.Time) (*SingleGuestToken, error) {
	var token SingleGuestToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, ErrUnrecognizedPayload
	}
	if token.InvitationID == "" || token.GuestEmail == "" || token.HostID == "" {
		return nil, ErrUnrecognizedPayload
	}
	if token.ExpiresAt > 0 && !now.Before(time.Unix(token.ExpiresAt, 0)) {
		return nil, ErrTokenExpired
	}
	return &token, nil
}

func tryBase64(raw string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(raw); err == nil {
			return decoded, true
		}
	}
	return nil, false
}
