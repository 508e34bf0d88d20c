package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SupportTeamID addresses notifications meant for whichever admin is on duty.
const SupportTeamID = "support_team"

type Repository interface {
	CreateSession(ctx context.Context, session *models.Session, welcome *models.Message) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int64, error)
	EndSession(ctx context.Context, id string, end models.SessionEnd, system *models.Message, rating *models.Rating) (*models.Session, error)
	TimeoutSession(ctx context.Context, id string, cutoff time.Time, end models.SessionEnd, system *models.Message) (*models.Session, error)
	ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error)
	AssignAdmin(ctx context.Context, id string, assignment models.Assignment, system *models.Message) (*models.Session, error)
	Escalate(ctx context.Context, id string, escalation models.Escalation, system *models.Message) (*models.Session, error)
	AddTag(ctx context.Context, id, tag string, at time.Time) (*models.Session, error)
	AddNote(ctx context.Context, id string, note models.AdminNote) (*models.Session, error)

	AppendMessage(ctx context.Context, msg *models.Message) (*models.Session, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, q models.MessageQuery) ([]models.Message, error)
	SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error
	MarkMessages(ctx context.Context, upd models.StatusUpdate) (int64, error)

	CreateRating(ctx context.Context, rating *models.Rating) error
	GetRatingBySession(ctx context.Context, sessionID string) (*models.Rating, error)
	ListRatings(ctx context.Context, filter models.RatingFilter) ([]models.Rating, error)
}

// SessionCache holds session documents for reads. FillSession only writes an
// empty slot; SetSession overwrites it with a document a write just committed.
type SessionCache interface {
	GetSession(ctx context.Context, id string) (*models.Session, bool)
	FillSession(ctx context.Context, s *models.Session)
	SetSession(ctx context.Context, s *models.Session)
	InvalidateSession(ctx context.Context, id string)
}

type AnalyticsCache interface {
	AnalyticsKey(ctx context.Context, parts ...string) string
	GetAnalytics(ctx context.Context, key string, dest interface{}) bool
	SetAnalytics(ctx context.Context, key string, value interface{})
	InvalidateAnalytics(ctx context.Context)
}

type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// ChatService is the support-chat engine: session lifecycle, the message log,
// the polling protocol and rating analytics. It holds no per-session state;
// every call is a self-contained unit of work against the repository.
type ChatService struct {
	repo      Repository
	notifier  Notifier
	sessions  SessionCache
	analytics AnalyticsCache
	metrics   *utils.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewChatService(repo Repository, notifier Notifier, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ChatService) WithCache(sessions SessionCache, analytics AnalyticsCache) *ChatService {
	s.sessions = sessions
	s.analytics = analytics
	return s
}

func (s *ChatService) WithMetrics(m *utils.Metrics) *ChatService {
	s.metrics = m
	return s
}

// timestamp is millisecond precision, the resolution Mongo stores, so cursor
// comparisons behave the same in every repository.
func (s *ChatService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *ChatService) loadSession(ctx context.Context, id string) (*models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", models.ErrValidation)
	}
	if s.sessions != nil {
		if cached, ok := s.sessions.GetSession(ctx, id); ok {
			return cached, nil
		}
	}
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		s.sessions.FillSession(ctx, session)
	}
	return session, nil
}

// freshSession reads past the cache. Poll uses it: sessionEnded is the
// client's stop signal.
func (s *ChatService) freshSession(ctx context.Context, id string) (*models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", models.ErrValidation)
	}
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		s.sessions.FillSession(ctx, session)
	}
	return session, nil
}

// cacheSession writes through a document returned by a committed write.
func (s *ChatService) cacheSession(ctx context.Context, session *models.Session) {
	if s.sessions != nil {
		s.sessions.SetSession(ctx, session)
	}
}

// refreshCached re-reads a session after a write that does not return it.
func (s *ChatService) refreshCached(ctx context.Context, id string) {
	if s.sessions == nil {
		return
	}
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		s.sessions.InvalidateSession(ctx, id)
		return
	}
	s.sessions.SetSession(ctx, session)
}

func (s *ChatService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil || n.UserID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.String("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
	}
}

func requireAuth(caller models.Identity) error {
	if !caller.Authenticated() {
		return models.ErrAuthenticationRequired
	}
	return nil
}

func requireAdmin(caller models.Identity) error {
	if err := requireAuth(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return models.ErrForbidden
	}
	return nil
}

// authorizeRead lets the bound owner and any admin see a session.
func authorizeRead(caller models.Identity, session *models.Session) error {
	if caller.IsAdmin() || session.OwnedBy(caller) {
		return nil
	}
	return models.ErrForbidden
}

// viewerSide is the side of the conversation the caller reads from.
func viewerSide(caller models.Identity, session *models.Session) models.SenderType {
	if session.OwnedBy(caller) {
		return models.SenderUser
	}
	return models.SenderAdmin
}

func newSessionID(t time.Time) string {
	return fmt.Sprintf("sess_%d_%s", t.UnixMilli(), randomSuffix())
}

func newMessageID(t time.Time) string {
	return fmt.Sprintf("msg_%d_%s", t.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func systemMessage(sessionID string, kind models.SystemMessageType, text string, at time.Time) *models.Message {
	return &models.Message{
		ID:        newMessageID(at),
		SessionID: sessionID,
		Sender:    models.SenderAdmin,
		SenderInfo: models.SenderInfo{
			ID:       "system",
			Name:     "Support",
			Verified: true,
		},
		Text:            text,
		Type:            models.MessageSystem,
		Status:          models.DeliverySent,
		IsSystemMessage: true,
		SystemType:      kind,
		CreatedAt:       at,
	}
}
