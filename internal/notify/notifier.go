package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-visitpass/internal/config"
	"ms-visitpass/internal/logger"
)

// Client talks to the external notification service. Delivery failures are
// reported to the caller, who decides whether they matter; nothing here
// retries.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *logger.Logger
}

func NewClient(cfg config.NotifyConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  log,
	}
}

type invitationMessage struct {
	GuestEmail   string `json:"guest_email"`
	GuestName    string `json:"guest_name"`
	HostName     string `json:"host_name"`
	InvitationID string `json:"invitation_id"`
}

type discountMessage struct {
	GuestEmail string `json:"guest_email"`
	GuestName  string `json:"guest_name"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// SendInvitation emails the guest their QR pass for an issued invitation.
func (c *Client) SendInvitation(ctx context.Context, guestEmail, guestName, hostName, invitationID string) (string, error) {
	return c.post(ctx, "/internal/v1/notifications/invitation", invitationMessage{
		GuestEmail:   guestEmail,
		GuestName:    guestName,
		HostName:     hostName,
		InvitationID: invitationID,
	})
}

// SendDiscount emails the guest their loyalty reward.
func (c *Client) SendDiscount(ctx context.Context, guestEmail, guestName string) (string, error) {
	return c.post(ctx, "/internal/v1/notifications/discount", discountMessage{
		GuestEmail: guestEmail,
		GuestName:  guestName,
	})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}

	url := c.baseURL + path
	c.logger.Debug("NOTIFY", fmt.Sprintf("Sending notification: %s", url))

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("NOTIFY", fmt.Sprintf("Notification service error: %v", err))
		return "", fmt.Errorf("notification service error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if closeErr := Body.Close(); closeErr != nil {
			c.logger.Error("NOTIFY", fmt.Sprintf("Failed to close notification response body: %v", closeErr))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.logger.Error("NOTIFY", fmt.Sprintf("Notification service returned status: %d", resp.StatusCode))
		return "", fmt.Errorf("notification service returned status: %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode notification response: %w", err)
	}
	return parsed.MessageID, nil
}
