package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	owner = models.Identity{
		Subject:       "user-1",
		Role:          models.RoleUser,
		Method:        models.AuthMethodEmail,
		Name:          "Dana",
		Email:         "dana@example.com",
		EmailVerified: true,
	}
	stranger = models.Identity{
		Subject: "user-2",
		Role:    models.RoleUser,
		Method:  models.AuthMethodEmail,
		Email:   "other@example.com",
	}
	admin = models.Identity{
		Subject: "admin-1",
		Role:    models.RoleAdmin,
		Method:  models.AuthMethodEmail,
		Name:    "Alex",
		Email:   "alex@support.example.com",
	}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) ofType(kind string) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, s := range n.sent {
		if s.Type == kind {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	svc      *ChatService
	repo     *repository.MemoryRepository
	clock    *clock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	notifier := &recordingNotifier{}
	c := newClock()
	svc := NewChatService(repo, notifier, zap.NewNop())
	svc.now = c.Now
	return &fixture{svc: svc, repo: repo, clock: c, notifier: notifier}
}

func (f *fixture) start(t *testing.T) *models.Session {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), owner, models.CreateSessionRequest{})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return s
}

func (f *fixture) send(t *testing.T, who models.Identity, sessionID, text string) *models.Message {
	t.Helper()
	var (
		msg *models.Message
		err error
	)
	req := models.SendMessageRequest{SessionID: sessionID, Text: text}
	if who.IsAdmin() {
		msg, err = f.svc.SendAdminMessage(context.Background(), who, req)
	} else {
		msg, err = f.svc.SendMessage(context.Background(), who, req)
	}
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return msg
}

func intPtr(v int) *int { return &v }

// failingRepo wraps the memory repository and fails chosen calls.
type failingRepo struct {
	*repository.MemoryRepository
	listStaleErr error
}

func (r *failingRepo) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	if r.listStaleErr != nil {
		return nil, r.listStaleErr
	}
	return r.MemoryRepository.ListStaleSessions(ctx, cutoff, limit)
}

var errStore = errors.New("store unavailable")

// memoryCache mirrors RedisCache's two write modes.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]models.Session
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]models.Session{}}
}

func (c *memoryCache) GetSession(ctx context.Context, id string) (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *memoryCache) FillSession(ctx context.Context, s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[s.ID]; !ok {
		c.entries[s.ID] = *s
	}
}

func (c *memoryCache) SetSession(ctx context.Context, s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.ID] = *s
}

func (c *memoryCache) InvalidateSession(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// interleavingRepo runs afterGet once, right after the next GetSession read
// returns, to place a concurrent write between a read and its cache fill.
type interleavingRepo struct {
	*repository.MemoryRepository
	afterGet func()
}

func (r *interleavingRepo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s, err := r.MemoryRepository.GetSession(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return s, err
}
