package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const qrImageSize = 256

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// EncodeBatchPayload serializes a guest list into the batch wire format.
// Every entry must carry both email and name, mirroring what the decoder
// enforces on the way back in.
func EncodeBatchPayload(guests []BatchGuest) (string, error) {
	if len(guests) == 0 {
		return "", fmt.Errorf("batch payload requires at least one guest")
	}
	for _, g := range guests {
		if g.Email == "" || g.Name == "" {
			return "", fmt.Errorf("batch guest requires both email and name")
		}
	}
	data, err := json.Marshal(BatchPayload{Guests: guests})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeInvitationToken serializes a legacy single-guest token in its
// base64-wrapped form, the encoding in-flight invitations still use.
func EncodeInvitationToken(token SingleGuestToken) (string, error) {
	if token.InvitationID == "" || token.GuestEmail == "" || token.HostID == "" {
		return "", fmt.Errorf("invitation token requires invitation_id, guest_email and host_id")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// GenerateBatchQR renders a guest list as a scannable PNG.
func (g *Generator) GenerateBatchQR(guests []BatchGuest) ([]byte, error) {
	payload, err := EncodeBatchPayload(guests)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(payload, qrcode.Medium, qrImageSize)
}

// GenerateInvitationQR renders a legacy invitation token as a scannable PNG.
func (g *Generator) GenerateInvitationQR(token SingleGuestToken) ([]byte, error) {
	payload, err := EncodeInvitationToken(token)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(payload, qrcode.Medium, qrImageSize)
}
