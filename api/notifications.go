package api

import (
	"net/http"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service notifications.NotificationUseCase
}

func NewNotificationHandler(service notifications.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/unread-count", h.unreadCount)
	router.POST("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "limit: must be a number", nil)
		return
	}
	unreadOnly := c.Query("unread") == "true"

	items, err := h.service.List(c.Request.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *NotificationHandler) unreadCount(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), actor.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor.ID, id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
