package services

import (
	"context"
	"testing"

	"storefront/support-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario C: a five-star rating handed over at end is tagged.
func TestEndWithRatingTagsExcellentService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	_, err := f.svc.EndSession(ctx, owner, models.EndSessionRequest{SessionID: s.ID, Rating: intPtr(5), Feedback: "great"})
	require.NoError(t, err)

	rating, err := f.svc.GetRating(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Score)
	assert.Equal(t, "great", rating.Feedback)
	assert.Contains(t, rating.Tags, models.TagExcellentService)
	assert.False(t, rating.FollowUpRequired)

	session, err := f.svc.GetSession(ctx, owner, s.ID)
	require.NoError(t, err)
	require.NotNil(t, session.Rating)
	assert.Equal(t, 5, *session.Rating)
	assert.Equal(t, "great", session.Feedback)
}

// Scenario E: only one rating per session.
func TestSubmitRatingTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	_, err := f.svc.SubmitRating(ctx, owner, models.RatingRequest{SessionID: s.ID, Score: 4})
	require.NoError(t, err)

	_, err = f.svc.SubmitRating(ctx, owner, models.RatingRequest{SessionID: s.ID, Score: 1})
	assert.ErrorIs(t, err, models.ErrAlreadySubmitted)

	_, err = f.svc.EndSession(ctx, owner, models.EndSessionRequest{SessionID: s.ID, Rating: intPtr(3)})
	assert.ErrorIs(t, err, models.ErrAlreadySubmitted)

	session, err := f.svc.GetSession(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, session.Status, "a rejected rating leaves the session open")
}

func TestSubmitRatingRange(t *testing.T) {
	f := newFixture(t)
	s := f.start(t)
	for _, score := range []int{0, 6, 100, -3} {
		_, err := f.svc.SubmitRating(context.Background(), owner, models.RatingRequest{SessionID: s.ID, Score: score})
		assert.ErrorIs(t, err, models.ErrOutOfRange, "score %d", score)
	}
}

func TestSubmitRatingDerivations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)
	_, err := f.svc.AssignAdmin(ctx, admin, s.ID, models.AssignRequest{})
	require.NoError(t, err)
	f.send(t, owner, s.ID, "hi")

	helpful := 5
	rating, err := f.svc.SubmitRating(ctx, owner, models.RatingRequest{
		SessionID:  s.ID,
		Score:      4,
		Feedback:   "  thanks ",
		Tags:       []string{"Fast", "fast", " "},
		Categories: models.RatingCategories{Helpfulness: &helpful},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", models.TagExcellentService}, rating.Tags)
	assert.Equal(t, "thanks", rating.Feedback)
	assert.Equal(t, "admin-1", rating.AdminID)
	assert.EqualValues(t, 3, rating.SessionMessageCount)
	assert.EqualValues(t, 2, rating.SessionDurationSeconds)
	assert.Equal(t, map[string]int{"helpfulness": 5}, rating.Categories.Scores())
}

func TestSubmitRatingAnonymousFallsBackToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	phoneUser := models.Identity{Subject: "user-7", Role: models.RoleUser, Method: models.AuthMethodPhone, Phone: "+77019998877", PhoneVerified: true}
	s, err := f.svc.CreateSession(ctx, phoneUser, models.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "User ***8877", s.Owner.Name)

	rating, err := f.svc.SubmitRating(ctx, models.Identity{}, models.RatingRequest{SessionID: s.ID, Score: 3})
	require.NoError(t, err)
	assert.Equal(t, "user-7", rating.Rater.Subject)
	assert.Equal(t, "User ***8877", rating.Rater.DisplayName)
	assert.Equal(t, models.AuthMethodPhone, rating.Rater.Method)
	assert.False(t, rating.Rater.IsGuest)
}

func TestSubmitRatingOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t)

	_, err := f.svc.SubmitRating(ctx, stranger, models.RatingRequest{SessionID: s.ID, Score: 5})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.SubmitRating(ctx, owner, models.RatingRequest{SessionID: "missing", Score: 5})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = f.svc.GetRating(ctx, owner, s.ID)
	assert.ErrorIs(t, err, models.ErrRatingNotFound)
}

func TestResolveRater(t *testing.T) {
	session := &models.Session{Owner: models.Owner{Subject: "user-1", Method: models.AuthMethodEmail, Email: "dana@example.com"}}

	t.Run("caller completed from snapshot", func(t *testing.T) {
		r := ResolveRater(models.Identity{Subject: "user-1", Role: models.RoleUser}, session)
		assert.Equal(t, "dana", r.DisplayName)
		assert.Equal(t, models.AuthMethodEmail, r.Method)
	})

	t.Run("admin caller uses snapshot", func(t *testing.T) {
		r := ResolveRater(admin, session)
		assert.Equal(t, "user-1", r.Subject)
	})

	t.Run("no owner at all", func(t *testing.T) {
		r := ResolveRater(models.Identity{}, &models.Session{})
		assert.Equal(t, "Guest", r.DisplayName)
		assert.True(t, r.IsGuest)
	})

	t.Run("guest owner", func(t *testing.T) {
		r := ResolveRater(models.Identity{}, &models.Session{Owner: models.Owner{Subject: "g1", Method: models.AuthMethodGuest}})
		assert.Equal(t, "Guest", r.DisplayName)
		assert.True(t, r.IsGuest)
	})
}
