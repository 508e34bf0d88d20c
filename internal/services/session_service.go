package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/support-service/internal/models"

	"go.uber.org/zap"
)

const (
	defaultSessionListLimit = 50
	maxSessionListLimit     = 200
)

func (s *ChatService) CreateSession(ctx context.Context, caller models.Identity, req models.CreateSessionRequest) (*models.Session, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = newSessionID(now)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	owner := ownerFrom(caller, req)
	session := &models.Session{
		ID:         id,
		Owner:      owner,
		Status:     models.StatusActive,
		StartedAt:  now,
		Priority:   priority,
		Tags:       []string{},
		AdminNotes: []models.AdminNote{},
		Context:    req.Context,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	welcome := systemMessage(id, models.SystemSessionStarted,
		fmt.Sprintf("Hi %s! Thanks for reaching out. A support agent will be with you shortly.", owner.Name), now)

	if err := s.repo.CreateSession(ctx, session, welcome); err != nil {
		return nil, err
	}

	s.metrics.SessionCreated()
	s.logger.Info("Support session created",
		zap.String("session_id", id),
		zap.String("owner", owner.Subject),
		zap.String("auth_method", string(owner.Method)))

	s.notify(ctx, models.Notification{
		UserID:  SupportTeamID,
		Role:    string(models.RoleAdmin),
		Title:   "New support chat",
		Message: fmt.Sprintf("%s started a support chat", owner.Name),
		Type:    "support_session_started",
		Metadata: map[string]string{
			"session_id": id,
			"priority":   string(priority),
		},
	})

	return session, nil
}

// ownerFrom snapshots the caller into the session. Verified identity fields
// win over whatever the client typed into the form.
func ownerFrom(caller models.Identity, req models.CreateSessionRequest) models.Owner {
	id := models.MergeIdentity(caller, models.Identity{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	})
	return models.Owner{
		Subject:       caller.Subject,
		Method:        caller.Method,
		Name:          models.DisplayName(id),
		Email:         id.Email,
		Phone:         id.Phone,
		EmailVerified: caller.EmailVerified,
		PhoneVerified: caller.PhoneVerified,
	}
}

func (s *ChatService) GetSession(ctx context.Context, caller models.Identity, id string) (*models.Session, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		redacted := session.Redacted()
		return &redacted, nil
	}
	return session, nil
}

// EndSession ends a session on behalf of its owner. An admin who is not the
// owner ends it as the support side.
func (s *ChatService) EndSession(ctx context.Context, caller models.Identity, req models.EndSessionRequest) (*models.Session, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case session.OwnedBy(caller):
		return s.endSession(ctx, caller, session, req, models.SenderUser)
	case caller.IsAdmin():
		return s.endSession(ctx, caller, session, req, models.SenderAdmin)
	default:
		return nil, models.ErrForbidden
	}
}

func (s *ChatService) AdminEndSession(ctx context.Context, caller models.Identity, req models.EndSessionRequest) (*models.Session, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.endSession(ctx, caller, session, req, models.SenderAdmin)
}

func (s *ChatService) endSession(ctx context.Context, caller models.Identity, session *models.Session, req models.EndSessionRequest, actor models.SenderType) (*models.Session, error) {
	if session.Status.Terminal() {
		return nil, models.ErrAlreadyEnded
	}

	now := s.timestamp()
	end := models.SessionEnd{
		Status:          models.StatusEnded,
		EndedAt:         now,
		DurationSeconds: durationSeconds(session.StartedAt, now),
		Reason:          strings.TrimSpace(req.Reason),
		EndedBy:         caller.Subject,
	}
	text := "The chat was ended by the customer."
	if actor == models.SenderAdmin {
		end.Status = models.StatusEndedByAdmin
		text = "The chat was ended by the support team."
		if end.Reason == "" {
			end.Reason = "admin_ended"
		}
	} else if end.Reason == "" {
		end.Reason = "user_ended"
	}
	system := systemMessage(session.ID, models.SystemSessionEnded, text, now)

	var rating *models.Rating
	if req.Rating != nil {
		var rater models.Rater
		if actor == models.SenderUser {
			rater = raterFrom(models.MergeIdentity(caller, session.Owner.Identity()))
		} else {
			rater = raterFrom(session.Owner.Identity())
		}
		categories := models.RatingCategories{}
		if req.Categories != nil {
			categories = *req.Categories
		}
		snapshot := *session
		snapshot.DurationSeconds = &end.DurationSeconds
		rating = buildRating(&snapshot, *req.Rating, req.Feedback, categories, nil, rater, now)
	}

	ended, err := s.repo.EndSession(ctx, session.ID, end, system, rating)
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, ended)
	s.metrics.SessionEnded(end.Status)
	if rating != nil {
		s.ratingStored(ctx, rating)
	}

	s.logger.Info("Support session ended",
		zap.String("session_id", session.ID),
		zap.String("status", string(end.Status)),
		zap.Int64("duration_seconds", end.DurationSeconds),
		zap.Bool("rated", rating != nil))

	n := models.Notification{
		Title:    "Support chat ended",
		Type:     "support_session_ended",
		Metadata: map[string]string{"session_id": session.ID, "status": string(end.Status)},
	}
	if actor == models.SenderAdmin {
		n.UserID = session.Owner.Subject
		n.Role = string(models.RoleUser)
		n.Message = "Your support chat has been closed by our team."
	} else if session.AssignedAdmin != nil {
		n.UserID = session.AssignedAdmin.AdminID
		n.Role = string(models.RoleAdmin)
		n.Message = fmt.Sprintf("%s ended the support chat", session.Owner.Name)
	}
	s.notify(ctx, n)

	if !caller.IsAdmin() {
		redacted := ended.Redacted()
		return &redacted, nil
	}
	return ended, nil
}

func durationSeconds(start, end time.Time) int64 {
	d := int64(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

func (s *ChatService) AssignAdmin(ctx context.Context, caller models.Identity, sessionID string, req models.AssignRequest) (*models.Session, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	assignment := models.Assignment{
		AdminID:    strings.TrimSpace(req.AdminID),
		AdminName:  strings.TrimSpace(req.AdminName),
		AdminEmail: strings.TrimSpace(req.AdminEmail),
	}
	if assignment.AdminID == "" || assignment.AdminID == caller.Subject {
		assignment.AdminID = caller.Subject
		if assignment.AdminName == "" {
			assignment.AdminName = models.DisplayName(caller)
		}
		if assignment.AdminEmail == "" {
			assignment.AdminEmail = caller.Email
		}
	}
	if assignment.AdminName == "" {
		assignment.AdminName = "Support agent"
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, models.ErrSessionNotActive
	}
	if session.AssignedAdmin != nil && session.AssignedAdmin.AdminID == assignment.AdminID {
		return session, nil
	}

	now := s.timestamp()
	assignment.AssignedAt = now
	system := systemMessage(sessionID, models.SystemAdminJoined,
		fmt.Sprintf("%s joined the chat.", assignment.AdminName), now)

	updated, err := s.repo.AssignAdmin(ctx, sessionID, assignment, system)
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, updated)

	s.logger.Info("Admin assigned to session",
		zap.String("session_id", sessionID),
		zap.String("admin_id", assignment.AdminID),
		zap.String("assigned_by", caller.Subject))

	if assignment.AdminID != caller.Subject {
		s.notify(ctx, models.Notification{
			UserID:   assignment.AdminID,
			Role:     string(models.RoleAdmin),
			Title:    "Support chat assigned",
			Message:  fmt.Sprintf("You were assigned the chat with %s", session.Owner.Name),
			Type:     "support_session_assigned",
			Metadata: map[string]string{"session_id": sessionID},
		})
	}

	return updated, nil
}

func (s *ChatService) Escalate(ctx context.Context, caller models.Identity, sessionID string, req models.EscalateRequest) (*models.Session, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	reason := strings.TrimSpace(req.Reason)
	system := systemMessage(sessionID, models.SystemEscalated,
		"This conversation has been escalated to a senior agent.", now)

	updated, err := s.repo.Escalate(ctx, sessionID, models.Escalation{Reason: reason, At: now}, system)
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, updated)

	s.logger.Warn("Support session escalated",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.String("escalated_by", caller.Subject))

	s.notify(ctx, models.Notification{
		UserID:   SupportTeamID,
		Role:     string(models.RoleAdmin),
		Title:    "Support chat escalated",
		Message:  reason,
		Type:     "support_session_escalated",
		Metadata: map[string]string{"session_id": sessionID},
	})

	return updated, nil
}

func (s *ChatService) AddTag(ctx context.Context, caller models.Identity, sessionID string, req models.TagRequest) (*models.Session, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tag := strings.ToLower(strings.TrimSpace(req.Tag))
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", models.ErrValidation)
	}

	updated, err := s.repo.AddTag(ctx, sessionID, tag, s.timestamp())
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, updated)
	return updated, nil
}

func (s *ChatService) AddAdminNote(ctx context.Context, caller models.Identity, sessionID string, req models.NoteRequest) (*models.Session, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	note := models.AdminNote{
		Note:       strings.TrimSpace(req.Note),
		AuthorID:   caller.Subject,
		AuthorName: models.DisplayName(caller),
		CreatedAt:  s.timestamp(),
	}
	updated, err := s.repo.AddNote(ctx, sessionID, note)
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, updated)
	return updated, nil
}

// ListActiveSessions is the admin queue. Without an explicit status it lists active
// sessions, most recently active first.
func (s *ChatService) ListActiveSessions(ctx context.Context, caller models.Identity, filter models.SessionFilter) ([]models.Session, int64, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	if filter.Status == "" {
		filter.Status = models.StatusActive
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultSessionListLimit
	}
	if filter.Limit > maxSessionListLimit {
		filter.Limit = maxSessionListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListSessions(ctx, filter)
}

// TimeoutStale ends active sessions with no activity for idle. Sessions that
// received a message after being listed are left alone.
func (s *ChatService) TimeoutStale(ctx context.Context, idle time.Duration, batch int) (int, error) {
	now := s.timestamp()
	cutoff := now.Add(-idle)

	stale, err := s.repo.ListStaleSessions(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range stale {
		end := models.SessionEnd{
			Status:          models.StatusTimeout,
			EndedAt:         now,
			DurationSeconds: durationSeconds(session.StartedAt, now),
			Reason:          "inactivity",
			EndedBy:         "system",
		}
		system := systemMessage(session.ID, models.SystemSessionTimeout,
			"This chat was closed due to inactivity.", now)

		timedOut, err := s.repo.TimeoutSession(ctx, session.ID, cutoff, end, system)
		if err != nil {
			if errors.Is(err, models.ErrSessionFresh) || errors.Is(err, models.ErrAlreadyEnded) {
				continue
			}
			s.logger.Error("Failed to time out session", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		s.cacheSession(ctx, timedOut)
		s.metrics.SessionEnded(models.StatusTimeout)
		closed++
	}
	return closed, nil
}
