package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
)

// handleListNotifications returns a provider's catch-up feed, newest first.
// ?unread=true restricts to notifications not yet marked read.
func (a *api) handleListNotifications(c *gin.Context) {
	providerID := c.Param("id")
	if _, err := store.GetProvider(a.db, providerID); err != nil {
		a.respondStoreErr(c, err)
		return
	}

	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unread filter"})
			return
		}
		unreadOnly = parsed
	}

	notifications, err := store.ListNotifications(a.db, providerID, unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// handleMarkNotificationsRead marks a provider's whole feed read.
func (a *api) handleMarkNotificationsRead(c *gin.Context) {
	providerID := c.Param("id")
	if _, err := store.GetProvider(a.db, providerID); err != nil {
		a.respondStoreErr(c, err)
		return
	}

	marked, err := store.MarkNotificationsRead(a.db, providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// recordNotification persists a catch-up record for a provider-facing push.
// Best-effort: the push already happened, a lost record is only a gap in
// the feed.
func (a *api) recordNotification(providerID string, evtType broadcast.EventType, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("server: marshal notification payload: %v", err)
		return
	}
	n := &models.Notification{
		ProviderID: providerID,
		Type:       string(evtType),
		Payload:    string(payload),
	}
	if err := store.InsertNotification(a.db, n); err != nil {
		log.Printf("server: record notification for %s: %v", providerID, err)
	}
}
