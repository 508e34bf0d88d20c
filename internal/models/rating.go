package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinScore = 1
	MaxScore = 5

	TagExcellentService = "excellent_service"
)

// RatingCategories holds optional sub-scores on the same 1..5 scale.
type RatingCategories struct {
	Responsiveness  *int `bson:"responsiveness,omitempty" json:"responsiveness,omitempty" validate:"omitempty,min=1,max=5"`
	Helpfulness     *int `bson:"helpfulness,omitempty" json:"helpfulness,omitempty" validate:"omitempty,min=1,max=5"`
	Professionalism *int `bson:"professionalism,omitempty" json:"professionalism,omitempty" validate:"omitempty,min=1,max=5"`
	Resolution      *int `bson:"resolution,omitempty" json:"resolution,omitempty" validate:"omitempty,min=1,max=5"`
}

// Scores returns the set sub-scores keyed by category name.
func (c RatingCategories) Scores() map[string]int {
	out := make(map[string]int, 4)
	add := func(name string, v *int) {
		if v != nil {
			out[name] = *v
		}
	}
	add("responsiveness", c.Responsiveness)
	add("helpfulness", c.Helpfulness)
	add("professionalism", c.Professionalism)
	add("resolution", c.Resolution)
	return out
}

type Rater struct {
	Subject     string     `bson:"subject,omitempty" json:"subject,omitempty"`
	DisplayName string     `bson:"display_name" json:"display_name"`
	Method      AuthMethod `bson:"auth_method,omitempty" json:"auth_method,omitempty"`
	Email       string     `bson:"email,omitempty" json:"email,omitempty"`
	IsGuest     bool       `bson:"is_guest" json:"is_guest"`
}

type Rating struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID        string             `bson:"session_id" json:"session_id"`
	Score            int                `bson:"score" json:"score"`
	Categories       RatingCategories   `bson:"categories" json:"categories"`
	Feedback         string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Tags             []string           `bson:"tags" json:"tags"`
	FollowUpRequired bool               `bson:"follow_up_required" json:"follow_up_required"`
	Rater            Rater              `bson:"rater" json:"rater"`
	AdminID          string             `bson:"admin_id,omitempty" json:"admin_id,omitempty"`

	SessionStartedAt       time.Time `bson:"session_started_at" json:"session_started_at"`
	SessionDurationSeconds int64     `bson:"session_duration_seconds" json:"session_duration_seconds"`
	SessionMessageCount    int64     `bson:"session_message_count" json:"session_message_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type RatingFilter struct {
	From    time.Time
	To      time.Time
	AdminID string
}

type RatingAnalytics struct {
	From                time.Time          `json:"from"`
	To                  time.Time          `json:"to"`
	AdminID             string             `json:"admin_id,omitempty"`
	TotalRatings        int                `json:"total_ratings"`
	AverageScore        float64            `json:"average_score"`
	CategoryAverages    map[string]float64 `json:"category_averages"`
	SatisfactionRate    float64            `json:"satisfaction_rate"`
	DissatisfactionRate float64            `json:"dissatisfaction_rate"`
	Distribution        map[int]int        `json:"distribution"`
	FollowUpRequired    int                `json:"follow_up_required"`
}

type AdminPerformance struct {
	AdminID          string             `json:"admin_id"`
	PeriodDays       int                `json:"period_days"`
	SessionsHandled  int64              `json:"sessions_handled"`
	TotalRatings     int                `json:"total_ratings"`
	AverageScore     float64            `json:"average_score"`
	CategoryAverages map[string]float64 `json:"category_averages"`
	SatisfactionRate float64            `json:"satisfaction_rate"`
}
