package handler

import (
	"fmt"
	"net/http"
	"time"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RatingHandler struct {
	Service *services.ChatService
	Logger  *zap.Logger
}

func NewRatingHandler(service *services.ChatService, logger *zap.Logger) *RatingHandler {
	return &RatingHandler{Service: service, Logger: logger}
}

func (h *RatingHandler) SubmitRating(c *gin.Context) {
	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	rating, err := h.Service.SubmitRating(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusCreated, "rating submitted", rating)
}

func (h *RatingHandler) GetRating(c *gin.Context) {
	rating, err := h.Service.GetRating(c.Request.Context(), caller(c), c.Param("sessionId"))
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "rating fetched", rating)
}

func (h *RatingHandler) GetAnalytics(c *gin.Context) {
	var q services.AnalyticsQuery
	var err error
	if q.From, err = queryTime(c, "from"); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.PeriodDays, err = queryInt(c, "days", 0); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	q.AdminID = c.Query("adminId")

	analytics, err := h.Service.GetAnalytics(c.Request.Context(), caller(c), q)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "analytics fetched", analytics)
}

func (h *RatingHandler) GetAdminPerformance(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	perf, err := h.Service.GetAdminPerformance(c.Request.Context(), caller(c), c.Param("id"), days)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "performance fetched", perf)
}

func queryTime(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return t, nil
}
