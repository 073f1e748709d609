package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mammutbb/mammut/util"
)

// GetWebfinger answers acct: discovery for local users. The resource is
// matched case-insensitively on the domain, exactly on the username.
func (h *Handlers) GetWebfinger(c *gin.Context) {
	resource := c.Query("resource")
	if resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing resource"})
		return
	}

	name, host, ok := util.ParseHandle(resource)
	if !ok || !strings.EqualFold(host, h.conf.Conf.SslDomain) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown resource"})
		return
	}

	err, account := h.db.ReadAccountByUsername(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}

	actorURI := fmt.Sprintf("%s/uid/%s", h.baseURL(), account.UID)
	c.Header("Content-Type", "application/jrd+json; charset=utf-8")
	c.JSON(http.StatusOK, gin.H{
		"subject": fmt.Sprintf("acct:%s@%s", account.Username, h.conf.Conf.SslDomain),
		"aliases": []string{
			actorURI,
			fmt.Sprintf("%s/user/%s", h.baseURL(), account.Username),
		},
		"links": []gin.H{
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": actorURI,
			},
			{
				"rel":  "http://webfinger.net/rel/profile-page",
				"type": "text/html",
				"href": fmt.Sprintf("%s/user/%s", h.baseURL(), account.Username),
			},
		},
	})
}
