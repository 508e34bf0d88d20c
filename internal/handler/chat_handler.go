package handler

import (
	"net/http"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandler struct {
	Service *services.ChatService
	Logger  *zap.Logger
}

func NewChatHandler(service *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{Service: service, Logger: logger}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Context.IP == "" {
		req.Context.IP = c.ClientIP()
	}
	if req.Context.UserAgent == "" {
		req.Context.UserAgent = c.Request.UserAgent()
	}

	session, err := h.Service.CreateSession(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusCreated, "session created", session)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.Service.GetSession(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "session fetched", session)
}

func (h *ChatHandler) EndSession(c *gin.Context) {
	var req models.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.Service.EndSession(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "session ended", session)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	n, err := h.Service.MarkRead(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "messages marked as read", gin.H{"updated": n})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := h.Service.SendMessage(c.Request.Context(), caller(c), req)
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusCreated, "message sent", msg)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	if err := h.Service.DeleteMessage(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "message deleted", nil)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	messages, err := h.Service.GetMessages(c.Request.Context(), caller(c), c.Param("id"), models.ListQuery{
		After:          c.Query("after"),
		Limit:          limit,
		IncludeDeleted: queryBool(c, "includeDeleted"),
	})
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "messages fetched", messages)
}

func (h *ChatHandler) Poll(c *gin.Context) {
	result, err := h.Service.Poll(c.Request.Context(), caller(c), c.Param("id"), c.Query("after"))
	if err != nil {
		handleServiceError(c, h.Logger, err)
		return
	}
	respondWithJSON(c, http.StatusOK, "poll ok", result)
}
