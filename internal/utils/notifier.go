package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/support-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const NotificationChannel = "notifications"

// NotificationClient posts to the notification service over HTTP.
type NotificationClient struct {
	URL        string
	httpClient *http.Client
}

func NewNotificationClient(url string) *NotificationClient {
	return &NotificationClient{
		URL:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *NotificationClient) Notify(ctx context.Context, notification models.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL+"/api/notifications/send", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}

// RedisPublisher hands notifications to the notification service through the
// shared pub/sub channel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Notify(ctx context.Context, notification models.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, NotificationChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
