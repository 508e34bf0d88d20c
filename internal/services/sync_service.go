package services

import (
	"context"

	"storefront/support-service/internal/models"

	"go.uber.org/zap"
)

// GetMessages is the history read used when a chat window opens.
func (s *ChatService) GetMessages(ctx context.Context, caller models.Identity, sessionID string, q models.ListQuery) ([]models.Message, error) {
	return s.ListSince(ctx, caller, sessionID, q)
}

// Poll returns what arrived after the client's cursor together with the
// session status. It is safe to repeat: the same cursor yields the same
// messages until new ones are appended. Counterpart messages handed out are
// marked delivered.
func (s *ChatService) Poll(ctx context.Context, caller models.Identity, sessionID, after string) (*models.PollResult, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	session, err := s.freshSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(caller, session); err != nil {
		return nil, err
	}

	messages, err := s.readLog(ctx, caller, session, models.ListQuery{After: after, Limit: defaultPollLimit})
	if err != nil {
		return nil, err
	}

	result := &models.PollResult{
		Messages:     messages,
		SessionEnded: session.Status.Terminal(),
		Status:       session.Status,
		Cursor:       after,
	}
	if len(messages) > 0 {
		result.Cursor = messages[len(messages)-1].ID
		s.markDelivered(ctx, caller, session, messages)
	}
	s.metrics.PollServed(len(messages))
	return result, nil
}

func (s *ChatService) markDelivered(ctx context.Context, caller models.Identity, session *models.Session, messages []models.Message) {
	from := viewerSide(caller, session).Counterpart()
	var ids []string
	for _, m := range messages {
		if m.Sender == from && !m.IsSystemMessage && m.Status == models.DeliverySent {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if _, err := s.repo.MarkMessages(ctx, models.StatusUpdate{
		SessionID: session.ID,
		Sender:    from,
		IDs:       ids,
		Status:    models.DeliveryDelivered,
		At:        s.timestamp(),
	}); err != nil {
		s.logger.Warn("Failed to mark messages delivered", zap.String("session_id", session.ID), zap.Error(err))
	}
}
