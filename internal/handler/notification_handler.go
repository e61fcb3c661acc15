package handler

import (
	"errors"
	"net/http"

	"hively/internal/domain"
	"hively/internal/events"
	"hively/internal/models"
	"hively/internal/repository"
	"hively/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
	bus *events.Bus
}

func NewNotificationHandler(svc *service.NotificationService, bus *events.Bus) *NotificationHandler {
	return &NotificationHandler{svc: svc, bus: bus}
}

type createNotificationRequest struct {
	UserID   string               `json:"user_id" binding:"required"`
	Type     string               `json:"type" binding:"required"`
	Title    string               `json:"title" binding:"required"`
	Body     string               `json:"body"`
	Metadata models.JSONMap       `json:"metadata"`
	Channels service.ChannelHints `json:"channels"`
}

// Create persists a notification and returns it immediately; delivery runs
// asynchronously and its outcome is only visible on later reads.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.svc.CreateNotification(c.Request.Context(), service.CreateInput{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Body,
		Metadata: req.Metadata,
		Channels: req.Channels,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	list, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	count, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

type markReadRequest struct {
	UserID string `json:"user_id"`
}

// MarkRead accepts user_id in the body or as a query parameter. Unknown ids
// and ids owned by someone else both come back as 404.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	_ = c.ShouldBindJSON(&req)
	userID := req.UserID
	if userID == "" {
		userID = c.Query("user_id")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	n, err := h.svc.MarkAsRead(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, n)
}

type ingestEventRequest struct {
	Type    string         `json:"type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// IngestEvent accepts a domain event from the allow-list and processes it
// asynchronously; 202 means accepted, not delivered.
func (h *NotificationHandler) IngestEvent(c *gin.Context) {
	var req ingestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !domain.KnownEventType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported event type"})
		return
	}
	h.bus.Publish(events.Event{Type: req.Type, Payload: req.Payload})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
