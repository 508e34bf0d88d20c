package repository

import (
	"context"
	"testing"
	"time"

	"storefront/support-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const testDB = "support_test"

// doc renders a model the way the driver would store it, for mock replies.
func doc(t *testing.T, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func findAndModifyReply(value interface{}) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: value})
}

func updateReply(matched int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: matched}, bson.E{Key: "nModified", Value: matched})
}

func countReply(coll string, n int) bson.D {
	if n == 0 {
		return mtest.CreateCursorResponse(0, testDB+"."+coll, mtest.FirstBatch)
	}
	return mtest.CreateCursorResponse(0, testDB+"."+coll, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func duplicateKeyReply() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"})
}

func commandNames(mt *mtest.T) []string {
	var names []string
	for _, evt := range mt.GetAllStartedEvents() {
		names = append(names, evt.CommandName)
	}
	return names
}

func TestMongoAppendMessage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("commits counters and message together", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		session := newSession("s1", base)
		session.MessageCount = 1
		mt.AddMockResponses(
			findAndModifyReply(doc(mt.T, session)),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		updated, err := repo.AppendMessage(ctx, newMessage("m1", "s1", models.SenderUser, base.Add(time.Second)))
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), updated.MessageCount)
		assert.Equal(mt, []string{"findAndModify", "insert", "commitTransaction"}, commandNames(mt))

		started := mt.GetAllStartedEvents()
		assert.True(mt, started[0].Command.Lookup("startTransaction").Boolean())
		filter := started[0].Command.Lookup("query")
		assert.Equal(mt, string(models.StatusActive), filter.Document().Lookup("status").StringValue())
	})

	mt.Run("inactive session", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			findAndModifyReply(nil),
			countReply(sessionsCollection, 1),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.AppendMessage(ctx, newMessage("m1", "s1", models.SenderUser, base))
		assert.ErrorIs(mt, err, models.ErrSessionNotActive)
		assert.Contains(mt, commandNames(mt), "abortTransaction")
	})

	mt.Run("missing session", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			findAndModifyReply(nil),
			countReply(sessionsCollection, 0),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.AppendMessage(ctx, newMessage("m1", "nope", models.SenderUser, base))
		assert.ErrorIs(mt, err, models.ErrSessionNotFound)
	})

	mt.Run("system messages skip the status filter", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		ended := newSession("s1", base)
		ended.Status = models.StatusEnded
		mt.AddMockResponses(
			findAndModifyReply(doc(mt.T, ended)),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		system := newMessage("m1", "s1", models.SenderAdmin, base)
		system.IsSystemMessage = true
		_, err := repo.AppendMessage(ctx, system)
		require.NoError(mt, err)

		filter := mt.GetAllStartedEvents()[0].Command.Lookup("query").Document()
		_, err = filter.LookupErr("status")
		assert.Error(mt, err)
	})
}

func TestMongoEndSession(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	end := models.SessionEnd{Status: models.StatusEnded, EndedAt: base.Add(time.Minute), Reason: "user_ended", EndedBy: "u1"}

	mt.Run("ends with system message and rating", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		ended := newSession("s1", base)
		ended.Status = models.StatusEnded
		mt.AddMockResponses(
			updateReply(1),
			findAndModifyReply(doc(mt.T, ended)),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			updateReply(1),
			mtest.CreateCursorResponse(0, testDB+"."+sessionsCollection, mtest.FirstBatch, doc(mt.T, ended)),
			mtest.CreateSuccessResponse(),
		)

		system := newMessage("sys", "s1", models.SenderAdmin, end.EndedAt)
		system.IsSystemMessage = true
		rating := &models.Rating{SessionID: "s1", Score: 4, CreatedAt: end.EndedAt}
		got, err := repo.EndSession(ctx, "s1", end, system, rating)
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusEnded, got.Status)
		assert.False(mt, rating.ID.IsZero())
		assert.Equal(mt, []string{"update", "findAndModify", "insert", "insert", "update", "find", "commitTransaction"}, commandNames(mt))
	})

	mt.Run("duplicate rating", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			updateReply(1),
			duplicateKeyReply(),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.EndSession(ctx, "s1", end, nil, &models.Rating{SessionID: "s1", Score: 4})
		assert.ErrorIs(mt, err, models.ErrAlreadySubmitted)
		assert.Contains(mt, commandNames(mt), "abortTransaction")
		assert.NotContains(mt, commandNames(mt), "commitTransaction")
	})

	mt.Run("already ended", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			updateReply(0),
			countReply(sessionsCollection, 1),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.EndSession(ctx, "s1", end, nil, nil)
		assert.ErrorIs(mt, err, models.ErrAlreadyEnded)
	})

	mt.Run("missing session", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			updateReply(0),
			countReply(sessionsCollection, 0),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.EndSession(ctx, "nope", end, nil, nil)
		assert.ErrorIs(mt, err, models.ErrSessionNotFound)
	})
}

func TestMongoTimeoutSession(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	end := models.SessionEnd{Status: models.StatusTimeout, EndedAt: base.Add(time.Hour), Reason: "inactivity", EndedBy: "system"}
	cutoff := base.Add(30 * time.Minute)

	for _, tt := range []struct {
		name    string
		current models.SessionStatus
		wantErr error
	}{
		{"active but fresh", models.StatusActive, models.ErrSessionFresh},
		{"ended meanwhile", models.StatusEnded, models.ErrAlreadyEnded},
	} {
		mt.Run(tt.name, func(mt *mtest.T) {
			repo := NewMongoRepository(mt.Client, testDB)
			current := newSession("s1", base)
			current.Status = tt.current
			mt.AddMockResponses(
				updateReply(0),
				mtest.CreateCursorResponse(0, testDB+"."+sessionsCollection, mtest.FirstBatch, doc(mt.T, current)),
				mtest.CreateSuccessResponse(),
			)

			_, err := repo.TimeoutSession(ctx, "s1", cutoff, end, nil)
			assert.ErrorIs(mt, err, tt.wantErr)
		})
	}

	mt.Run("stale session", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		timedOut := newSession("s1", base)
		timedOut.Status = models.StatusTimeout
		mt.AddMockResponses(
			updateReply(1),
			mtest.CreateCursorResponse(0, testDB+"."+sessionsCollection, mtest.FirstBatch, doc(mt.T, timedOut)),
			mtest.CreateSuccessResponse(),
		)

		got, err := repo.TimeoutSession(ctx, "s1", cutoff, end, nil)
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusTimeout, got.Status)

		filter := mt.GetAllStartedEvents()[0].Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("q").Document()
		assert.Equal(mt, "s1", filter.Lookup("_id").StringValue())
		assert.Equal(mt, string(models.StatusActive), filter.Lookup("status").StringValue())
	})
}

func TestMongoListMessages(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ns := testDB + "." + messagesCollection

	mt.Run("latest page comes back oldest first", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			doc(mt.T, newMessage("m3", "s1", models.SenderUser, base.Add(3*time.Second))),
			doc(mt.T, newMessage("m2", "s1", models.SenderUser, base.Add(2*time.Second))),
		))

		got, err := repo.ListMessages(ctx, models.MessageQuery{SessionID: "s1", Limit: 2})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "m2", got[0].ID)
		assert.Equal(mt, "m3", got[1].ID)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, int64(-1), cmd.Lookup("sort", "created_at").AsInt64())
		assert.Equal(mt, int64(-1), cmd.Lookup("sort", "_id").AsInt64())
		assert.Equal(mt, int64(2), cmd.Lookup("limit").AsInt64())
	})

	mt.Run("cursor page reads forward from the compound key", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			doc(mt.T, newMessage("m3", "s1", models.SenderUser, base)),
			doc(mt.T, newMessage("m4", "s1", models.SenderUser, base)),
		))

		after := base
		got, err := repo.ListMessages(ctx, models.MessageQuery{SessionID: "s1", After: &after, AfterID: "m2", Limit: 2})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "m3", got[0].ID)
		assert.Equal(mt, "m4", got[1].ID)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, int64(1), cmd.Lookup("sort", "created_at").AsInt64())
		_, err = cmd.Lookup("filter").Document().LookupErr("$or")
		assert.NoError(mt, err)
	})

	mt.Run("empty result is not nil", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		got, err := repo.ListMessages(ctx, models.MessageQuery{SessionID: "s1"})
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})
}

func TestMongoRatingsAndLookups(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("duplicate rating", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(duplicateKeyReply(), mtest.CreateSuccessResponse())

		err := repo.CreateRating(ctx, &models.Rating{SessionID: "s1", Score: 5, CreatedAt: base})
		assert.ErrorIs(mt, err, models.ErrAlreadySubmitted)
	})

	mt.Run("rating for a missing session", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), updateReply(0), mtest.CreateSuccessResponse())

		err := repo.CreateRating(ctx, &models.Rating{SessionID: "nope", Score: 5, CreatedAt: base})
		assert.ErrorIs(mt, err, models.ErrSessionNotFound)
	})

	mt.Run("missing documents map to not found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, testDB+"."+sessionsCollection, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, testDB+"."+messagesCollection, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, testDB+"."+ratingsCollection, mtest.FirstBatch),
		)

		_, err := repo.GetSession(ctx, "nope")
		assert.ErrorIs(mt, err, models.ErrSessionNotFound)
		_, err = repo.GetMessage(ctx, "nope")
		assert.ErrorIs(mt, err, models.ErrMessageNotFound)
		_, err = repo.GetRatingBySession(ctx, "nope")
		assert.ErrorIs(mt, err, models.ErrRatingNotFound)
	})

	mt.Run("soft delete of a missing message", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Client, testDB)
		mt.AddMockResponses(
			updateReply(0),
			mtest.CreateCursorResponse(0, testDB+"."+messagesCollection, mtest.FirstBatch),
		)

		err := repo.SoftDeleteMessage(ctx, "nope", "u1", base)
		assert.ErrorIs(mt, err, models.ErrMessageNotFound)
	})
}
