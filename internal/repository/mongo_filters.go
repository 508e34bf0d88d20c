package repository

import (
	"time"

	"storefront/support-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func sessionFilterDoc(f models.SessionFilter) bson.M {
	doc := bson.M{}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	if f.Priority != "" {
		doc["priority"] = f.Priority
	}
	if f.AssignedAdmin != "" {
		doc["assigned_admin.admin_id"] = f.AssignedAdmin
	} else if f.Unassigned {
		doc["assigned_admin"] = bson.M{"$exists": false}
	}
	if f.EscalatedOnly {
		doc["escalated"] = true
	}
	if f.StartedAfter != nil {
		doc["started_at"] = bson.M{"$gte": *f.StartedAfter}
	}
	return doc
}

// staleFilterDoc matches active sessions with no activity since cutoff.
// Sessions always carry last_message_at once the welcome message lands; the
// started_at branch covers documents written without one.
func staleFilterDoc(cutoff time.Time) bson.M {
	return bson.M{
		"status": models.StatusActive,
		"$or": bson.A{
			bson.M{"last_message_at": bson.M{"$lt": cutoff}},
			bson.M{"last_message_at": bson.M{"$exists": false}, "started_at": bson.M{"$lt": cutoff}},
		},
	}
}

func messageFilterDoc(q models.MessageQuery) bson.M {
	doc := bson.M{"session_id": q.SessionID}
	if !q.IncludeDeleted {
		doc["deleted"] = bson.M{"$ne": true}
	}
	if q.After == nil {
		return doc
	}
	if q.AfterID == "" {
		doc["created_at"] = bson.M{"$gt": *q.After}
		return doc
	}
	// same order as the (created_at, _id) index
	doc["$or"] = bson.A{
		bson.M{"created_at": bson.M{"$gt": *q.After}},
		bson.M{"created_at": *q.After, "_id": bson.M{"$gt": q.AfterID}},
	}
	return doc
}

// counterUpdate increments rather than overwrites, so concurrent appends to
// one session never lose a count; $max keeps the timestamps monotonic.
func counterUpdate(msg *models.Message) bson.M {
	latest := bson.M{
		"last_message_at": msg.CreatedAt,
		"updated_at":      msg.CreatedAt,
	}
	if !msg.IsSystemMessage {
		switch msg.Sender {
		case models.SenderUser:
			latest["last_user_message_at"] = msg.CreatedAt
		case models.SenderAdmin:
			latest["last_admin_message_at"] = msg.CreatedAt
		}
	}
	return bson.M{
		"$inc": bson.M{"message_count": 1},
		"$max": latest,
	}
}

func endFields(end models.SessionEnd) bson.M {
	return bson.M{
		"status":           end.Status,
		"ended_at":         end.EndedAt,
		"duration_seconds": end.DurationSeconds,
		"end_reason":       end.Reason,
		"ended_by":         end.EndedBy,
		"updated_at":       end.EndedAt,
	}
}

func markFilterDoc(upd models.StatusUpdate) bson.M {
	lower := []models.DeliveryStatus{models.DeliverySent}
	if upd.Status == models.DeliveryRead {
		lower = append(lower, models.DeliveryDelivered)
	}
	doc := bson.M{
		"session_id":        upd.SessionID,
		"sender":            upd.Sender,
		"is_system_message": false,
		"status":            bson.M{"$in": lower},
	}
	if len(upd.IDs) > 0 {
		doc["_id"] = bson.M{"$in": upd.IDs}
	}
	return doc
}

// markUpdate is an aggregation pipeline so a read marker can backfill
// delivered_at without overwriting an earlier delivery time.
func markUpdate(upd models.StatusUpdate) mongo.Pipeline {
	set := bson.M{"status": upd.Status}
	switch upd.Status {
	case models.DeliveryDelivered:
		set["delivered_at"] = upd.At
	case models.DeliveryRead:
		set["read_at"] = upd.At
		set["delivered_at"] = bson.M{"$ifNull": bson.A{"$delivered_at", upd.At}}
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func ratingFilterDoc(f models.RatingFilter) bson.M {
	doc := bson.M{}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lt"] = f.To
	}
	if len(created) > 0 {
		doc["created_at"] = created
	}
	if f.AdminID != "" {
		doc["admin_id"] = f.AdminID
	}
	return doc
}
