package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/support-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationClient(t *testing.T) {
	var received models.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notifications/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		if received.UserID == "reject" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewNotificationClient(srv.URL)
	n := models.Notification{UserID: "user-1", Title: "New reply", Type: "support_message"}
	require.NoError(t, client.Notify(context.Background(), n))
	assert.Equal(t, n, received)

	err := client.Notify(context.Background(), models.Notification{UserID: "reject"})
	assert.ErrorContains(t, err, "status 500")
}

func TestNotificationClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewNotificationClient(url).Notify(context.Background(), models.Notification{UserID: "user-1"})
	assert.ErrorContains(t, err, "failed to send notification")
}
