package web

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// NewRouter wires the federation routes. Inbound federation is rate
// limited per client IP; all responses are gzip-compressed when the
// client supports it.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(20), 60)))

	router.GET("/.well-known/webfinger", h.GetWebfinger)
	router.GET("/actor", h.GetInstanceActor)
	router.GET("/uid/:uid", h.GetUserActor)
	router.GET("/category/:cid", h.GetCategoryActor)
	router.GET("/topic/:tid", h.GetTopicCollection)
	router.GET("/post/:pid", h.GetPostObject)
	router.POST("/inbox", h.PostInbox)

	return router
}
