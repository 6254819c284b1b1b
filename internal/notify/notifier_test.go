package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-visitpass/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDiscount(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-123"})
	}))
	defer server.Close()

	client := NewClient(config.NotifyConfig{BaseURL: server.URL, Timeout: 2 * time.Second}, nil)

	messageID, err := client.SendDiscount(context.Background(), "guest@x.com", "Guest")
	require.NoError(t, err)
	assert.Equal(t, "msg-123", messageID)
	assert.Equal(t, "/internal/v1/notifications/discount", gotPath)
	assert.Equal(t, "guest@x.com", gotBody["guest_email"])
}

func TestSendInvitation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "/internal/v1/notifications/invitation", r.URL.Path)
		assert.Equal(t, "inv-1", body["invitation_id"])
		json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-456"})
	}))
	defer server.Close()

	client := NewClient(config.NotifyConfig{BaseURL: server.URL + "/", Timeout: 2 * time.Second}, nil)

	messageID, err := client.SendInvitation(context.Background(), "guest@x.com", "Guest", "Host", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-456", messageID)
}

func TestSendDiscountServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(config.NotifyConfig{BaseURL: server.URL, Timeout: 2 * time.Second}, nil)

	_, err := client.SendDiscount(context.Background(), "guest@x.com", "Guest")
	assert.Error(t, err)
}
