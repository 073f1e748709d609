// Package web exposes the instance's federation surface over HTTP: actor
// documents, webfinger discovery, content collections and the shared
// inbox.
package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mammutbb/mammut/activitypub"
	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

// Database is the read surface the web layer needs. The sqlite-backed
// db.DB satisfies it.
type Database interface {
	ReadAccountById(uid string) (error, *domain.Account)
	ReadAccountByUsername(username string) (error, *domain.Account)
	ReadCategoryById(cid string) (error, *domain.Category)
	ReadTopic(tid string) (error, *domain.Topic)
	ReadPost(pid string) (error, *domain.Post)
	ReadPostsByTopic(tid string) (error, *[]domain.Post)
}

// Handlers bundles the HTTP handlers with their dependencies.
type Handlers struct {
	db      Database
	conf    *util.AppConfig
	service *activitypub.Service
}

func NewHandlers(database Database, service *activitypub.Service, conf *util.AppConfig) *Handlers {
	return &Handlers{db: database, conf: conf, service: service}
}

const securityContext = "https://w3id.org/security/v1"

func (h *Handlers) baseURL() string {
	return h.conf.BaseURL()
}

// GetUserActor serves the Person document of a local account. Browsers
// are sent to the profile page instead.
func (h *Handlers) GetUserActor(c *gin.Context) {
	err, account := h.db.ReadAccountById(c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	if !wantsActivityJSON(c) {
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("%s/user/%s", h.baseURL(), account.Username))
		return
	}

	actorURI := fmt.Sprintf("%s/uid/%s", h.baseURL(), account.UID)
	displayName := account.DisplayName
	if displayName == "" {
		displayName = account.Username
	}
	avatarURL := fmt.Sprintf("%s/static/logo.png", h.baseURL())
	if account.AvatarURL != "" {
		avatarURL = h.baseURL() + account.AvatarURL
	}

	writeActivityJSON(c, http.StatusOK, gin.H{
		"@context":                  []any{"https://www.w3.org/ns/activitystreams", securityContext},
		"id":                        actorURI,
		"type":                      "Person",
		"preferredUsername":         account.Username,
		"name":                      displayName,
		"summary":                   account.Summary,
		"url":                       fmt.Sprintf("%s/user/%s", h.baseURL(), account.Username),
		"inbox":                     actorURI + "/inbox",
		"outbox":                    actorURI + "/outbox",
		"followers":                 actorURI + "/followers",
		"following":                 actorURI + "/following",
		"manuallyApprovesFollowers": false,
		"discoverable":              true,
		"icon": gin.H{
			"type":      "Image",
			"mediaType": "image/png",
			"url":       avatarURL,
		},
		"endpoints": gin.H{
			"sharedInbox": h.baseURL() + "/inbox",
		},
		"publicKey": gin.H{
			"id":           actorURI + "#main-key",
			"owner":        actorURI,
			"publicKeyPem": account.WebPublicKey,
		},
	})
}

// GetCategoryActor serves the Group document of a local category. Remote
// categories live at their origin and are not replayed here. The HTML
// rendition of a category is the web frontend's business, so anything
// that does not negotiate ActivityStreams gets a 404.
func (h *Handlers) GetCategoryActor(c *gin.Context) {
	if !wantsActivityJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such category"})
		return
	}
	err, category := h.db.ReadCategoryById(c.Param("cid"))
	if err != nil || category.Remote {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such category"})
		return
	}

	actorURI := fmt.Sprintf("%s/category/%s", h.baseURL(), category.CID)
	doc := gin.H{
		"@context":          []any{"https://www.w3.org/ns/activitystreams", securityContext},
		"id":                actorURI,
		"type":              "Group",
		"preferredUsername": categorySlug(category),
		"name":              category.Name,
		"summary":           category.Description,
		"url":               actorURI,
		"inbox":             h.baseURL() + "/inbox",
		"outbox":            actorURI + "/outbox",
		"followers":         actorURI + "/followers",
		"publicKey": gin.H{
			"id":           actorURI + "#main-key",
			"owner":        actorURI,
			"publicKeyPem": category.WebPublicKey,
		},
	}
	if category.BackgroundImage != "" {
		doc["icon"] = gin.H{
			"type": "Image",
			"url":  category.BackgroundImage,
		}
	}
	writeActivityJSON(c, http.StatusOK, doc)
}

// GetInstanceActor serves the Application actor representing the site
// itself. Its key signs instance-level activities.
func (h *Handlers) GetInstanceActor(c *gin.Context) {
	actorURI := h.baseURL() + "/actor"
	writeActivityJSON(c, http.StatusOK, gin.H{
		"@context":                  []any{"https://www.w3.org/ns/activitystreams", securityContext},
		"id":                        actorURI,
		"type":                      "Application",
		"preferredUsername":         h.conf.Conf.SslDomain,
		"name":                      h.conf.Conf.SiteName,
		"summary":                   h.conf.Conf.NodeDescription,
		"url":                       h.baseURL(),
		"inbox":                     h.baseURL() + "/inbox",
		"outbox":                    actorURI + "/outbox",
		"manuallyApprovesFollowers": true,
	})
}

// categorySlug derives the preferredUsername of a local category from its
// slug, which may carry a numeric prefix.
func categorySlug(category *domain.Category) string {
	if category.Slug == "" {
		return "category-" + category.CID
	}
	if i := strings.LastIndex(category.Slug, "/"); i >= 0 {
		return category.Slug[i+1:]
	}
	return category.Slug
}
