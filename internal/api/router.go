package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func NewRouter(h *Handler, logger *logrus.Logger, basePath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(basePath)
	{
		// Notifications
		api.GET("/notifications/user/:user_id", h.GetNotificationsByUserID)
		api.POST("/notifications/read", h.MarkNotificationsRead)

		// Preferences
		api.GET("/preferences/:user_id", h.GetPreferences)
		api.PUT("/preferences/:user_id", h.UpdatePreferences)
	}

	r.GET("/ws/:user_id", h.Subscribe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
