package handler

import (
	"net/http"
	"time"

	"storefront/support-service/internal/models"
	"storefront/support-service/internal/services"
	"storefront/support-service/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service     *services.ChatService
	Verifier    utils.IdentityVerifier
	PollLimiter *utils.RateLimiter
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	chat := NewChatHandler(cfg.Service, logger)
	admin := NewAdminHandler(cfg.Service, logger)
	ratings := NewRatingHandler(cfg.Service, logger)

	support := router.Group("/api/support")
	support.POST("/rating", utils.AuthMiddleware(cfg.Verifier, false, logger), ratings.SubmitRating)

	authed := support.Group("")
	authed.Use(utils.AuthMiddleware(cfg.Verifier, true, logger))
	{
		authed.POST("/session", chat.CreateSession)
		authed.POST("/session/end", chat.EndSession)
		authed.GET("/session/:id", chat.GetSession)
		authed.POST("/session/:id/read", chat.MarkRead)

		authed.POST("/message", chat.SendMessage)
		authed.DELETE("/message/:id", chat.DeleteMessage)
		authed.GET("/messages/:id", chat.GetMessages)

		poll := []gin.HandlerFunc{chat.Poll}
		if cfg.PollLimiter != nil {
			poll = append([]gin.HandlerFunc{cfg.PollLimiter.Middleware()}, poll...)
		}
		authed.GET("/poll/:id", poll...)

		authed.GET("/rating/:sessionId", ratings.GetRating)
	}

	admins := authed.Group("/admin")
	admins.Use(utils.RequireRoles(models.RoleAdmin, models.RoleManager))
	{
		admins.GET("/active-sessions", admin.ListActiveSessions)
		admins.POST("/message", admin.SendMessage)
		admins.POST("/session/:id/end", admin.EndSession)
		admins.POST("/session/:id/assign", admin.Assign)
		admins.POST("/session/:id/escalate", admin.Escalate)
		admins.POST("/session/:id/tags", admin.AddTag)
		admins.POST("/session/:id/notes", admin.AddNote)

		admins.GET("/analytics", ratings.GetAnalytics)
		admins.GET("/performance", ratings.GetAdminPerformance)
		admins.GET("/performance/:id", ratings.GetAdminPerformance)
	}

	return router
}
