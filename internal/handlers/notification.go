package handlers

import (
	"net/http"

	"greentera/internal/apperror"
	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(n *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: n}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, unread, err := h.notifications.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unreadCount": unread})
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	MarkAll        bool   `json:"markAll"`
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	var err error
	switch {
	case req.MarkAll:
		err = h.notifications.MarkAllRead(ctx, user.ID)
	case req.NotificationID != "":
		err = h.notifications.MarkRead(ctx, user.ID, req.NotificationID)
	default:
		err = apperror.ValidationFailed("notificationId", "notificationId or markAll is required")
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
