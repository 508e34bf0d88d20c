package repository

import (
	"context"
	"errors"
	"time"

	"storefront/support-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sessionsCollection = "support_sessions"
	messagesCollection = "support_messages"
	ratingsCollection  = "support_ratings"
)

// MongoRepository needs a replica set: every multi-document write runs in a
// transaction.
type MongoRepository struct {
	client      *mongo.Client
	sessionsCol *mongo.Collection
	messagesCol *mongo.Collection
	ratingsCol  *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	db := client.Database(dbName)
	return &MongoRepository{
		client:      client,
		sessionsCol: db.Collection(sessionsCollection),
		messagesCol: db.Collection(messagesCollection),
		ratingsCol:  db.Collection(ratingsCollection),
	}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.sessionsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_message_at", Value: 1}}},
		{Keys: bson.D{{Key: "owner.subject", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_admin.admin_id", Value: 1}, {Key: "started_at", Value: -1}}},
	}); err != nil {
		return err
	}
	if _, err := r.messagesCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := r.ratingsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "admin_id", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Sessions

func (r *MongoRepository) CreateSession(ctx context.Context, session *models.Session, welcome *models.Message) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.sessionsCol.InsertOne(sc, session); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return models.ErrAlreadyExists
			}
			return err
		}
		if welcome == nil {
			return nil
		}
		updated, err := r.appendInTx(sc, welcome)
		if err != nil {
			return err
		}
		*session = *updated
		return nil
	})
}

func (r *MongoRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.sessionsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		return nil, r.handleDatabaseError(err, models.ErrSessionNotFound)
	}
	return &session, nil
}

func (r *MongoRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int64, error) {
	doc := sessionFilterDoc(filter)

	total, err := r.sessionsCol.CountDocuments(ctx, doc)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.sessionsCol.Find(ctx, doc, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, 0, err
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, total, nil
}

func (r *MongoRepository) EndSession(ctx context.Context, id string, end models.SessionEnd, system *models.Message, rating *models.Rating) (*models.Session, error) {
	var out *models.Session
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.sessionsCol.UpdateOne(sc,
			bson.M{"_id": id, "status": models.StatusActive},
			bson.M{"$set": endFields(end)},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return r.missOr(sc, id, models.ErrAlreadyEnded)
		}
		if system != nil {
			if _, err := r.appendInTx(sc, system); err != nil {
				return err
			}
		}
		if rating != nil {
			if err := r.insertRatingInTx(sc, rating); err != nil {
				return err
			}
		}
		out, err = r.findSession(sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) TimeoutSession(ctx context.Context, id string, cutoff time.Time, end models.SessionEnd, system *models.Message) (*models.Session, error) {
	var out *models.Session
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		filter := staleFilterDoc(cutoff)
		filter["_id"] = id
		res, err := r.sessionsCol.UpdateOne(sc, filter, bson.M{"$set": endFields(end)})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			current, err := r.findSession(sc, id)
			if err != nil {
				return err
			}
			if current.Status.Terminal() {
				return models.ErrAlreadyEnded
			}
			return models.ErrSessionFresh
		}
		if system != nil {
			if _, err := r.appendInTx(sc, system); err != nil {
				return err
			}
		}
		out, err = r.findSession(sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.sessionsCol.Find(ctx, staleFilterDoc(cutoff), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	err = cursor.All(ctx, &sessions)
	return sessions, err
}

func (r *MongoRepository) AssignAdmin(ctx context.Context, id string, assignment models.Assignment, system *models.Message) (*models.Session, error) {
	return r.updateActive(ctx, id, bson.M{"$set": bson.M{
		"assigned_admin": assignment,
		"updated_at":     assignment.AssignedAt,
	}}, system)
}

func (r *MongoRepository) Escalate(ctx context.Context, id string, escalation models.Escalation, system *models.Message) (*models.Session, error) {
	return r.updateActive(ctx, id, bson.M{"$set": bson.M{
		"escalated":         true,
		"escalation_reason": escalation.Reason,
		"escalated_at":      escalation.At,
		"priority":          models.PriorityUrgent,
		"updated_at":        escalation.At,
	}}, system)
}

func (r *MongoRepository) AddTag(ctx context.Context, id, tag string, at time.Time) (*models.Session, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$addToSet": bson.M{"tags": tag},
		"$max":      bson.M{"updated_at": at},
	})
}

func (r *MongoRepository) AddNote(ctx context.Context, id string, note models.AdminNote) (*models.Session, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$push": bson.M{"admin_notes": note},
		"$max":  bson.M{"updated_at": note.CreatedAt},
	})
}

// Messages

func (r *MongoRepository) AppendMessage(ctx context.Context, msg *models.Message) (*models.Session, error) {
	var out *models.Session
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		s, err := r.appendInTx(sc, msg)
		out = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.messagesCol.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, r.handleDatabaseError(err, models.ErrMessageNotFound)
	}
	return &msg, nil
}

func (r *MongoRepository) ListMessages(ctx context.Context, q models.MessageQuery) ([]models.Message, error) {
	dir := 1
	if q.After == nil {
		// newest first, reversed below
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := r.messagesCol.Find(ctx, messageFilterDoc(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	if dir < 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (r *MongoRepository) SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error {
	res, err := r.messagesCol.UpdateOne(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": at, "deleted_by": deletedBy}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// already deleted is fine, missing is not
		_, err := r.GetMessage(ctx, id)
		return err
	}
	return nil
}

func (r *MongoRepository) MarkMessages(ctx context.Context, upd models.StatusUpdate) (int64, error) {
	res, err := r.messagesCol.UpdateMany(ctx, markFilterDoc(upd), markUpdate(upd))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Ratings

func (r *MongoRepository) CreateRating(ctx context.Context, rating *models.Rating) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return r.insertRatingInTx(sc, rating)
	})
}

func (r *MongoRepository) GetRatingBySession(ctx context.Context, sessionID string) (*models.Rating, error) {
	var rating models.Rating
	if err := r.ratingsCol.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rating); err != nil {
		return nil, r.handleDatabaseError(err, models.ErrRatingNotFound)
	}
	return &rating, nil
}

func (r *MongoRepository) ListRatings(ctx context.Context, filter models.RatingFilter) ([]models.Rating, error) {
	cursor, err := r.ratingsCol.Find(ctx, ratingFilterDoc(filter), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ratings []models.Rating
	err = cursor.All(ctx, &ratings)
	return ratings, err
}

// transaction steps

// appendInTx is the single write path for messages: the session counters and
// the message document commit together, and non-system messages only land on
// active sessions.
func (r *MongoRepository) appendInTx(sc mongo.SessionContext, msg *models.Message) (*models.Session, error) {
	filter := bson.M{"_id": msg.SessionID}
	if !msg.IsSystemMessage {
		filter["status"] = models.StatusActive
	}

	var session models.Session
	err := r.sessionsCol.FindOneAndUpdate(sc, filter, counterUpdate(msg),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOr(sc, msg.SessionID, models.ErrSessionNotActive)
		}
		return nil, err
	}

	if _, err := r.messagesCol.InsertOne(sc, msg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrAlreadyExists
		}
		return nil, err
	}
	return &session, nil
}

func (r *MongoRepository) insertRatingInTx(sc mongo.SessionContext, rating *models.Rating) error {
	if rating.ID.IsZero() {
		rating.ID = primitive.NewObjectID()
	}
	if _, err := r.ratingsCol.InsertOne(sc, rating); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrAlreadySubmitted
		}
		return err
	}
	res, err := r.sessionsCol.UpdateOne(sc, bson.M{"_id": rating.SessionID}, bson.M{"$set": bson.M{
		"rating":     rating.Score,
		"feedback":   rating.Feedback,
		"updated_at": rating.CreatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

func (r *MongoRepository) updateActive(ctx context.Context, id string, update bson.M, system *models.Message) (*models.Session, error) {
	var out *models.Session
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.sessionsCol.UpdateOne(sc, bson.M{"_id": id, "status": models.StatusActive}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return r.missOr(sc, id, models.ErrSessionNotActive)
		}
		if system != nil {
			if _, err := r.appendInTx(sc, system); err != nil {
				return err
			}
		}
		out, err = r.findSession(sc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) findAndUpdate(ctx context.Context, id string, update bson.M) (*models.Session, error) {
	var session models.Session
	err := r.sessionsCol.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		return nil, r.handleDatabaseError(err, models.ErrSessionNotFound)
	}
	return &session, nil
}

func (r *MongoRepository) findSession(ctx context.Context, id string) (*models.Session, error) {
	return r.GetSession(ctx, id)
}

// missOr tells a missing session apart from one that failed the state filter.
func (r *MongoRepository) missOr(ctx context.Context, id string, stateErr error) error {
	count, err := r.sessionsCol.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return models.ErrSessionNotFound
	}
	return stateErr
}

func (r *MongoRepository) handleDatabaseError(err error, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return err
}
