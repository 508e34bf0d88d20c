package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondWithJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, models.APIResponse{
		Data:       data,
		Message:    message,
		Success:    code < http.StatusBadRequest,
		StatusCode: code,
	})
}

func respondWithError(c *gin.Context, code int, message string) {
	respondWithJSON(c, code, message, nil)
}

// bindOptionalJSON binds a body the endpoint may omit. An empty body, chunked
// or not, leaves req at its zero value.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleServiceError maps service errors onto HTTP statuses. Anything that is
// not a known sentinel is logged and answered with a generic 500.
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrAuthenticationRequired):
		respondWithError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrForbidden):
		respondWithError(c, http.StatusForbidden, err.Error())
	case models.IsNotFound(err):
		respondWithError(c, http.StatusNotFound, err.Error())
	case models.IsConflict(err):
		respondWithError(c, http.StatusConflict, err.Error())
	case models.IsValidation(err):
		respondWithError(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, "internal server error")
	}
}

// caller returns the verified identity, or the zero identity on anonymous
// routes.
func caller(c *gin.Context) models.Identity {
	identity, _ := utils.IdentityFrom(c)
	return identity
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
