package web

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mammutbb/mammut/activitypub"
	"github.com/mammutbb/mammut/domain"
)

const maxInboxBodyBytes = 1 << 20

// PostInbox is the shared inbox. Unknown activity types are acknowledged
// and dropped, so a chatty peer never sees errors for traffic we do not
// handle.
func (h *Handlers) PostInbox(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var activity domain.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed activity"})
		return
	}
	if activity.Type == "" || activity.Actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete activity"})
		return
	}

	ctx := c.Request.Context()
	switch activity.Type {
	case "Create":
		if _, err := h.service.InboxCreate(ctx, &activity); err != nil {
			log.Printf("inbox: create %s failed: %v", activity.ID, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not process object"})
			return
		}
	case "Update":
		if activity.Object == nil || activity.Object.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "update carries no object"})
			return
		}
		if kind := activity.Object.Type; kind == "Person" || kind == "Group" || kind == "Application" {
			h.service.AssertActors(ctx, []string{activity.Object.ID}, activitypub.AssertOpts{Update: true})
		} else if _, err := h.service.AssertNote(ctx, "", activity.Object.ID, activitypub.AssertOpts{Update: true}); err != nil {
			log.Printf("inbox: update %s failed: %v", activity.Object.ID, err)
		}
	case "Delete":
		if activity.Object == nil || activity.Object.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delete carries no object"})
			return
		}
		h.handleDelete(activity.Object.ID)
	default:
		log.Printf("inbox: ignoring %s from %s", activity.Type, activity.Actor)
	}

	c.Status(http.StatusAccepted)
}

// handleDelete routes a tombstone to the right cascade: a known category
// gets purged, anything else is treated as a post deletion.
func (h *Handlers) handleDelete(id string) {
	if err, category := h.db.ReadCategoryById(id); err == nil && category.Remote {
		if err := h.service.PurgeCategory(id); err != nil {
			log.Printf("inbox: purge of %s failed: %v", id, err)
		}
		return
	}
	h.service.DeletePosts([]string{id})
}
