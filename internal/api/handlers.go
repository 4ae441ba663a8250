package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/dispatch"
	"notification-engine/internal/models"
	"notification-engine/internal/providers"
	"notification-engine/internal/storage"
)

type Handler struct {
	dispatcher  *dispatch.Dispatcher
	preferences storage.PreferenceStore
	hub         *providers.Hub
	logger      *logrus.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(dispatcher *dispatch.Dispatcher, preferences storage.PreferenceStore, hub *providers.Hub, logger *logrus.Logger) *Handler {
	return &Handler{
		dispatcher:  dispatcher,
		preferences: preferences,
		hub:         hub,
		logger:      logger,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// GetNotificationsByUserID lists a user's notifications, newest first.
// Query params: limit (default 50), unread_only.
func (h *Handler) GetNotificationsByUserID(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
	}
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.dispatcher.ListUserNotifications(c.Request.Context(), userID, limit, unreadOnly)
	if err != nil {
		h.logger.Errorf("Failed to list notifications for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationsRead flags the given notifications as read for the user.
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	var req struct {
		UserID          int64    `json:"user_id" binding:"required"`
		NotificationIDs []string `json:"notification_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	count, err := h.dispatcher.MarkRead(c.Request.Context(), req.NotificationIDs, req.UserID)
	if err != nil {
		h.logger.Errorf("Failed to mark notifications read for user_id %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

// GetPreferences returns the user's preferences, creating defaults on first access.
func (h *Handler) GetPreferences(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	pref, err := h.preferences.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("Failed to get preferences for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get preferences"})
		return
	}
	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences applies a partial preference update. Validation errors
// (bad HH:MM, unknown severity, bad timezone) surface synchronously.
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	var patch models.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := patch.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref, err := h.preferences.Update(c.Request.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Preferences not found"})
			return
		}
		h.logger.Errorf("Failed to update preferences for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, pref)
}

// Subscribe upgrades to a WebSocket for live in-app notifications.
func (h *Handler) Subscribe(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user_id %d: %v", userID, err)
		return
	}
	h.hub.AddConnection(userID, conn)

	go func() {
		defer func() {
			h.hub.RemoveConnection(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
