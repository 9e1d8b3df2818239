package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/internal/service"
)

// NotificationService is what the handler needs from the service layer.
type NotificationService interface {
	Create(ctx context.Context, in service.CreateInput) (*model.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*model.Notification, error)
	Delete(ctx context.Context, userID, id string) (*model.Notification, error)
}

type NotificationHandler struct {
	svc    NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// sessionUserID reads the user id the auth middleware stored.
func sessionUserID(c *gin.Context) string {
	v, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	id, _ := v.(string)
	return id
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.logger.Warn("List: userId is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}

	if userID != sessionUserID(c) {
		h.logger.Warn("List: user mismatch",
			zap.String("requested_user_id", userID),
			zap.String("session_user_id", sessionUserID(c)),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	notifications, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("List: success",
		zap.String("user_id", userID),
		zap.Int("count", len(notifications)),
	)
	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	var in service.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Warn("Create: invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if in.UserID != "" && in.UserID != sessionUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	in.Source = "api"
	n, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")

	n, err := h.svc.MarkRead(c.Request.Context(), sessionUserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	n, err := h.svc.Delete(c.Request.Context(), sessionUserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, n)
}

// respondError maps domain errors to status codes. Storage detail is
// logged server-side but never echoed to the client.
func (h *NotificationHandler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		msg := "Missing fields: " + strings.Join(verr.Fields, ", ")
		if len(verr.Fields) == 1 && verr.Fields[0] == "userId" {
			msg = "Missing userId"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	h.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
