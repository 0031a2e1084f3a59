package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/service"
)

func listNotificationsHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limitQuery(c, "50")
		if !ok {
			return
		}
		unread := c.Query("unread") == "true"
		ns, err := svc.ListNotifications(c.Request.Context(), currentUser(c).ID, unread, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ns)
	}
}

func unreadCountHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.UnreadCount(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

func markReadHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		if err := svc.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func markAllReadHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.MarkAllRead(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}
