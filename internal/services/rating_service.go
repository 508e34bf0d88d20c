package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/support-service/internal/models"

	"go.uber.org/zap"
)

// SubmitRating records the single rating a session can receive. The caller
// may be anonymous; the rater then falls back to the session owner.
func (s *ChatService) SubmitRating(ctx context.Context, caller models.Identity, req models.RatingRequest) (*models.Rating, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if caller.Authenticated() && !caller.IsAdmin() && !session.OwnedBy(caller) {
		return nil, models.ErrForbidden
	}

	now := s.timestamp()
	rating := buildRating(session, req.Score, req.Feedback, req.Categories, req.Tags, ResolveRater(caller, session), now)
	if err := s.repo.CreateRating(ctx, rating); err != nil {
		return nil, err
	}
	s.refreshCached(ctx, session.ID)
	s.ratingStored(ctx, rating)

	s.logger.Info("Rating submitted",
		zap.String("session_id", session.ID),
		zap.Int("score", rating.Score),
		zap.String("rater", rating.Rater.DisplayName),
		zap.Bool("follow_up", rating.FollowUpRequired))
	return rating, nil
}

func (s *ChatService) ratingStored(ctx context.Context, rating *models.Rating) {
	s.metrics.RatingSubmitted(rating.Score)
	if s.analytics != nil {
		s.analytics.InvalidateAnalytics(ctx)
	}
	if rating.FollowUpRequired {
		s.notify(ctx, models.Notification{
			UserID:  SupportTeamID,
			Role:    string(models.RoleAdmin),
			Title:   "Low support rating",
			Message: fmt.Sprintf("%s rated their chat %d/%d", rating.Rater.DisplayName, rating.Score, models.MaxScore),
			Type:    "support_rating_follow_up",
			Metadata: map[string]string{
				"session_id": rating.SessionID,
				"score":      strconv.Itoa(rating.Score),
			},
		})
	}
}

func (s *ChatService) GetRating(ctx context.Context, caller models.Identity, sessionID string) (*models.Rating, error) {
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
	return s.repo.GetRatingBySession(ctx, sessionID)
}

// ResolveRater picks who a rating is attributed to: the authenticated owner
// (completed from the session snapshot), else the snapshot itself, else an
// anonymous guest.
func ResolveRater(caller models.Identity, session *models.Session) models.Rater {
	if caller.Authenticated() && !caller.IsAdmin() {
		return raterFrom(models.MergeIdentity(caller, session.Owner.Identity()))
	}
	if session.Owner.Subject != "" {
		return raterFrom(session.Owner.Identity())
	}
	return models.Rater{
		DisplayName: models.DisplayName(models.Identity{}),
		Method:      models.AuthMethodGuest,
		IsGuest:     true,
	}
}

func raterFrom(id models.Identity) models.Rater {
	return models.Rater{
		Subject:     id.Subject,
		DisplayName: models.DisplayName(id),
		Method:      id.Method,
		Email:       id.Email,
		IsGuest:     id.Method == models.AuthMethodGuest || !id.Authenticated(),
	}
}

func buildRating(session *models.Session, score int, feedback string, categories models.RatingCategories, tags []string, rater models.Rater, now time.Time) *models.Rating {
	rating := &models.Rating{
		SessionID:           session.ID,
		Score:               score,
		Categories:          categories,
		Feedback:            strings.TrimSpace(feedback),
		Tags:                normalizeTags(tags),
		FollowUpRequired:    score <= 2,
		Rater:               rater,
		SessionStartedAt:    session.StartedAt,
		SessionMessageCount: session.MessageCount,
		CreatedAt:           now,
	}
	if score >= 4 && !containsString(rating.Tags, models.TagExcellentService) {
		rating.Tags = append(rating.Tags, models.TagExcellentService)
	}
	if session.AssignedAdmin != nil {
		rating.AdminID = session.AssignedAdmin.AdminID
	}
	if session.DurationSeconds != nil {
		rating.SessionDurationSeconds = *session.DurationSeconds
	} else {
		rating.SessionDurationSeconds = durationSeconds(session.StartedAt, now)
	}
	return rating
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !containsString(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
