package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mammutbb/mammut/domain"
)

// GetTopicCollection serves a topic as an OrderedCollection of its post
// ids, oldest first. Only ActivityStreams requests are answered.
func (h *Handlers) GetTopicCollection(c *gin.Context) {
	if !wantsActivityJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such topic"})
		return
	}
	tid := c.Param("tid")
	err, topic := h.db.ReadTopic(tid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such topic"})
		return
	}
	if topic.Timestamp.After(time.Now()) {
		// scheduled content is invisible until its timestamp passes
		c.JSON(http.StatusNotFound, gin.H{"error": "no such topic"})
		return
	}

	err, posts := h.db.ReadPostsByTopic(tid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load topic"})
		return
	}

	items := make([]string, 0, len(*posts))
	for _, p := range *posts {
		items = append(items, h.postURI(&p))
	}

	collectionURI := fmt.Sprintf("%s/topic/%s", h.baseURL(), tid)
	writeActivityJSON(c, http.StatusOK, gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           collectionURI,
		"type":         "OrderedCollection",
		"name":         topic.Title,
		"totalItems":   len(items),
		"orderedItems": items,
	})
}

// GetPostObject serves a local post as a Note. Only ActivityStreams
// requests are answered.
func (h *Handlers) GetPostObject(c *gin.Context) {
	if !wantsActivityJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such post"})
		return
	}
	pid := c.Param("pid")
	err, post := h.db.ReadPost(pid)
	if err != nil || post.Remote {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such post"})
		return
	}
	if post.Timestamp.After(time.Now()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such post"})
		return
	}

	err, topic := h.db.ReadTopic(post.TID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such post"})
		return
	}

	objectURI := fmt.Sprintf("%s/post/%s", h.baseURL(), post.PID)
	doc := gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           objectURI,
		"type":         "Note",
		"url":          objectURI,
		"attributedTo": fmt.Sprintf("%s/uid/%s", h.baseURL(), post.UID),
		"content":      post.Content,
		"mediaType":    "text/html",
		"published":    post.Timestamp.UTC().Format(time.RFC3339),
		"context":      fmt.Sprintf("%s/topic/%s", h.baseURL(), post.TID),
		"to":           []string{domain.PublicCollection},
		"cc":           []string{h.categoryAddr(topic.CID)},
	}
	if post.PID == topic.MainPID {
		doc["name"] = topic.Title
	} else {
		if err, main := h.db.ReadPost(topic.MainPID); err == nil {
			doc["inReplyTo"] = h.postURI(main)
		}
	}
	if post.EditedAt != nil {
		doc["updated"] = post.EditedAt.UTC().Format(time.RFC3339)
	}
	writeActivityJSON(c, http.StatusOK, doc)
}

func (h *Handlers) postURI(post *domain.Post) string {
	if post.Remote {
		return post.PID
	}
	return fmt.Sprintf("%s/post/%s", h.baseURL(), post.PID)
}

func (h *Handlers) categoryAddr(cid string) string {
	if err, category := h.db.ReadCategoryById(cid); err == nil && category.Remote {
		return category.ActorURI
	}
	return fmt.Sprintf("%s/category/%s", h.baseURL(), cid)
}
