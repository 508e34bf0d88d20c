package handler

import (
	"net/http"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	Service *services.ChatService
	Logger  *zap.Logger
}

func NewAdminHandler(service *services.ChatService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Service: service, Logger: logger}
}

func (h *AdminHandler) ListActiveSessions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	sessions, total, err := h.Service.ListActiveSessions(c.Request.Context(), caller(c), models.SessionFilter{
		Status:        models.SessionStatus(c.Query("status")),
		Priority:      models.Priority(c.Query("priority")),
		AssignedAdmin: c.Query("assignedTo"),
		Unassigned:    queryBool(c, "unassigned"),
		EscalatedOnly: queryBool(c, "escalated"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "sessions fetched", gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

func (h *AdminHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := h.Service.SendAdminMessage(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusCreated, "message sent", msg)
}

func (h *AdminHandler) EndSession(c *gin.Context) {
	var req models.EndSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.SessionID = c.Param("id")

	session, err := h.Service.AdminEndSession(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "session ended", session)
}

func (h *AdminHandler) Assign(c *gin.Context) {
	var req models.AssignRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	session, err := h.Service.AssignAdmin(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "admin assigned", session)
}

func (h *AdminHandler) Escalate(c *gin.Context) {
	var req models.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.Service.Escalate(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "session escalated", session)
}

func (h *AdminHandler) AddTag(c *gin.Context) {
	var req models.TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.Service.AddTag(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "tag added", session)
}

func (h *AdminHandler) AddNote(c *gin.Context) {
	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.Service.AddAdminNote(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "note added", session)
}
