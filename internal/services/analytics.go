package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"storefront/support-service/internal/models"
)

const (
	defaultPeriodDays = 30
	maxPeriodDays     = 365
)

// AnalyticsQuery selects the rating window. Without From the window is the
// last PeriodDays days.
type AnalyticsQuery struct {
	From       time.Time
	To         time.Time
	PeriodDays int
	AdminID    string
}

// Aggregate summarizes a set of ratings. Rates are percentages of the total,
// rounded to two decimals; satisfied means 4 or 5, dissatisfied 1 or 2.
func Aggregate(ratings []models.Rating) models.RatingAnalytics {
	out := models.RatingAnalytics{
		TotalRatings:     len(ratings),
		CategoryAverages: map[string]float64{},
		Distribution:     map[int]int{},
	}
	for score := models.MinScore; score <= models.MaxScore; score++ {
		out.Distribution[score] = 0
	}
	if len(ratings) == 0 {
		return out
	}

	var sum, satisfied, dissatisfied int
	catSum := map[string]int{}
	catCount := map[string]int{}
	for _, r := range ratings {
		sum += r.Score
		out.Distribution[r.Score]++
		switch {
		case r.Score >= 4:
			satisfied++
		case r.Score <= 2:
			dissatisfied++
		}
		if r.FollowUpRequired {
			out.FollowUpRequired++
		}
		for name, v := range r.Categories.Scores() {
			catSum[name] += v
			catCount[name]++
		}
	}

	n := float64(len(ratings))
	out.AverageScore = round2(float64(sum) / n)
	out.SatisfactionRate = round2(float64(satisfied) * 100 / n)
	out.DissatisfactionRate = round2(float64(dissatisfied) * 100 / n)
	for name, total := range catSum {
		out.CategoryAverages[name] = round2(float64(total) / float64(catCount[name]))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// window resolves a query against the clock. The default end is the start of
// the next minute so repeated requests within a minute share a cache key.
func (s *ChatService) window(q AnalyticsQuery) (time.Time, time.Time, error) {
	to := q.To.UTC()
	if to.IsZero() {
		to = s.timestamp().Truncate(time.Minute).Add(time.Minute)
	}
	from := q.From.UTC()
	if from.IsZero() {
		days := q.PeriodDays
		if days <= 0 {
			days = defaultPeriodDays
		}
		if days > maxPeriodDays {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: period cannot exceed %d days", models.ErrValidation, maxPeriodDays)
		}
		from = to.AddDate(0, 0, -days)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be before to", models.ErrValidation)
	}
	return from, to, nil
}

func (s *ChatService) GetAnalytics(ctx context.Context, caller models.Identity, q AnalyticsQuery) (*models.RatingAnalytics, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	from, to, err := s.window(q)
	if err != nil {
		return nil, err
	}

	var key string
	if s.analytics != nil {
		key = s.analytics.AnalyticsKey(ctx, "window",
			strconv.FormatInt(from.Unix(), 10), strconv.FormatInt(to.Unix(), 10), q.AdminID)
		var cached models.RatingAnalytics
		if s.analytics.GetAnalytics(ctx, key, &cached) {
			return &cached, nil
		}
	}

	ratings, err := s.repo.ListRatings(ctx, models.RatingFilter{From: from, To: to, AdminID: q.AdminID})
	if err != nil {
		return nil, err
	}
	result := Aggregate(ratings)
	result.From = from
	result.To = to
	result.AdminID = q.AdminID

	if s.analytics != nil {
		s.analytics.SetAnalytics(ctx, key, result)
	}
	return &result, nil
}

// GetAdminPerformance reports one admin's sessions and ratings over the last
// periodDays days. An empty adminID means the caller.
func (s *ChatService) GetAdminPerformance(ctx context.Context, caller models.Identity, adminID string, periodDays int) (*models.AdminPerformance, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if adminID == "" {
		adminID = caller.Subject
	}
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}
	from, to, err := s.window(AnalyticsQuery{PeriodDays: periodDays})
	if err != nil {
		return nil, err
	}

	var key string
	if s.analytics != nil {
		key = s.analytics.AnalyticsKey(ctx, "admin", adminID, strconv.Itoa(periodDays), strconv.FormatInt(to.Unix(), 10))
		var cached models.AdminPerformance
		if s.analytics.GetAnalytics(ctx, key, &cached) {
			return &cached, nil
		}
	}

	ratings, err := s.repo.ListRatings(ctx, models.RatingFilter{From: from, To: to, AdminID: adminID})
	if err != nil {
		return nil, err
	}
	_, handled, err := s.repo.ListSessions(ctx, models.SessionFilter{
		AssignedAdmin: adminID,
		StartedAfter:  &from,
		Limit:         1,
	})
	if err != nil {
		return nil, err
	}

	agg := Aggregate(ratings)
	perf := &models.AdminPerformance{
		AdminID:          adminID,
		PeriodDays:       periodDays,
		SessionsHandled:  handled,
		TotalRatings:     agg.TotalRatings,
		AverageScore:     agg.AverageScore,
		CategoryAverages: agg.CategoryAverages,
		SatisfactionRate: agg.SatisfactionRate,
	}
	if s.analytics != nil {
		s.analytics.SetAnalytics(ctx, key, perf)
	}
	return perf, nil
}
