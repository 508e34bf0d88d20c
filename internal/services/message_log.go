package services

import (
	"context"
	"fmt"
	"strings"

	"storefront/support-service/internal/models"

	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	defaultPollLimit    = 20
	maxMessageLimit     = 100
)

// SendMessage appends a message from the session owner.
func (s *ChatService) SendMessage(ctx context.Context, caller models.Identity, req models.SendMessageRequest) (*models.Message, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	return s.appendMessage(ctx, caller, models.SenderUser, req)
}

// SendAdminMessage appends a reply from the support side.
func (s *ChatService) SendAdminMessage(ctx context.Context, caller models.Identity, req models.SendMessageRequest) (*models.Message, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.appendMessage(ctx, caller, models.SenderAdmin, req)
}

func (s *ChatService) appendMessage(ctx context.Context, caller models.Identity, sender models.SenderType, req models.SendMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sender == models.SenderUser && !session.OwnedBy(caller) {
		return nil, models.ErrForbidden
	}
	if session.Status.Terminal() {
		return nil, models.ErrSessionNotActive
	}
	if req.ReplyTo != "" {
		parent, err := s.repo.GetMessage(ctx, req.ReplyTo)
		if err != nil || parent.SessionID != session.ID {
			return nil, fmt.Errorf("%w: reply_to does not reference a message in this session", models.ErrValidation)
		}
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	now := s.timestamp()
	msg := &models.Message{
		ID:        newMessageID(now),
		SessionID: session.ID,
		Sender:    sender,
		SenderInfo: models.SenderInfo{
			ID:       caller.Subject,
			Name:     models.DisplayName(caller),
			Avatar:   caller.Avatar,
			Verified: caller.Verified(),
		},
		Text:        strings.TrimSpace(req.Text),
		Type:        msgType,
		Attachments: req.Attachments,
		ReplyTo:     req.ReplyTo,
		Status:      models.DeliverySent,
		CreatedAt:   now,
	}

	updated, err := s.repo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.cacheSession(ctx, updated)
	s.metrics.MessageAppended(msg)

	s.logger.Debug("Message appended",
		zap.String("session_id", session.ID),
		zap.String("message_id", msg.ID),
		zap.String("sender", string(sender)),
		zap.Int64("message_count", updated.MessageCount))

	s.notify(ctx, messageNotification(updated, msg))
	return msg, nil
}

// messageNotification routes a new message to the other side: the assigned
// admin (or the whole team) for user messages, the owner for replies.
func messageNotification(session *models.Session, msg *models.Message) models.Notification {
	n := models.Notification{
		Title:   "New support message",
		Message: preview(msg.Text, 120),
		Type:    "support_message",
		Metadata: map[string]string{
			"session_id": session.ID,
			"message_id": msg.ID,
		},
	}
	if msg.Sender == models.SenderAdmin {
		n.UserID = session.Owner.Subject
		n.Role = string(models.RoleUser)
		return n
	}
	n.Role = string(models.RoleAdmin)
	n.UserID = SupportTeamID
	if session.AssignedAdmin != nil {
		n.UserID = session.AssignedAdmin.AdminID
	}
	return n
}

func preview(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}

// ListSince returns messages of a session strictly after the cursor message,
// or the latest page when no cursor is given. Deleted messages are only
// visible to admins who ask for them.
func (s *ChatService) ListSince(ctx context.Context, caller models.Identity, sessionID string, q models.ListQuery) ([]models.Message, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	return s.readLog(ctx, caller, session, q)
}

func (s *ChatService) readLog(ctx context.Context, caller models.Identity, session *models.Session, q models.ListQuery) ([]models.Message, error) {
	cursor, err := s.resolveCursor(ctx, session.ID, q.After)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	query := models.MessageQuery{
		SessionID:      session.ID,
		Limit:          limit,
		IncludeDeleted: q.IncludeDeleted && caller.IsAdmin(),
	}
	if cursor != nil {
		at := cursor.CreatedAt
		query.After = &at
		query.AfterID = cursor.ID
	}
	return s.repo.ListMessages(ctx, query)
}

// resolveCursor looks up the message an opaque cursor names. Pages are cut on
// (created_at, id), so messages sharing the cursor's millisecond are not lost
// at a page boundary. A cursor must be a message of the same session.
func (s *ChatService) resolveCursor(ctx context.Context, sessionID, after string) (*models.Message, error) {
	after = strings.TrimSpace(after)
	if after == "" {
		return nil, nil
	}
	cursor, err := s.repo.GetMessage(ctx, after)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.ErrInvalidCursor
		}
		return nil, err
	}
	if cursor.SessionID != sessionID {
		return nil, models.ErrInvalidCursor
	}
	return cursor, nil
}

// DeleteMessage soft-deletes a message. Owners may delete their own messages;
// admins may delete any message.
func (s *ChatService) DeleteMessage(ctx context.Context, caller models.Identity, messageID string) error {
	if err := requireAuth(caller); err != nil {
		return err
	}
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() {
		session, err := s.loadSession(ctx, msg.SessionID)
		if err != nil {
			return err
		}
		if !session.OwnedBy(caller) || msg.Sender != models.SenderUser || msg.IsSystemMessage {
			return models.ErrForbidden
		}
	}
	if err := s.repo.SoftDeleteMessage(ctx, messageID, caller.Subject, s.timestamp()); err != nil {
		return err
	}
	s.logger.Info("Message deleted",
		zap.String("message_id", messageID),
		zap.String("session_id", msg.SessionID),
		zap.String("deleted_by", caller.Subject))
	return nil
}

// MarkRead marks everything the other side sent as read.
func (s *ChatService) MarkRead(ctx context.Context, caller models.Identity, sessionID string) (int64, error) {
	if err := requireAuth(caller); err != nil {
		return 0, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return 0, err
	}
	return s.repo.MarkMessages(ctx, models.StatusUpdate{
		SessionID: sessionID,
		Sender:    viewerSide(caller, session).Counterpart(),
		Status:    models.DeliveryRead,
		At:        s.timestamp(),
	})
}
