package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func init() {
	// bound messages carry bot-owned payloads; keep their integers exact
	binding.EnableDecoderUseNumber = true
}

// NewRouter wires the webhook, the inspection endpoints and the operational
// endpoints. Everything under /v1 except the Slack webhook needs a bearer token.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(h.log()))

	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	webhook := r.Group("/v1/slack")
	if h.Limiter != nil {
		webhook.Use(h.Limiter.Middleware())
	}
	webhook.POST("/interactions", h.SlackInteractions)

	v1 := r.Group("/v1")
	v1.Use(RequireAuth(h.Auth))
	{
		v1.GET("/policy", h.GetPolicy)
		v1.POST("/ids/assign", h.AssignIDs)
		v1.POST("/ids/extract", h.ExtractIDs)

		conv := v1.Group("/conversations/:channel/:conversation")
		conv.GET("", h.GetRecord)
		conv.GET("/messages", h.ListMessages)
		conv.GET("/pack", h.ExportPack)
		conv.POST("/ids/enable", h.EnableIDs)
		conv.POST("/ids/disable", h.DisableIDs)
		conv.DELETE("/ids", h.ClearIDs)
		conv.POST("/messages", h.SendMessages)
		conv.PUT("/messages/:id", h.UpdateMessage)
		conv.DELETE("/messages/:id", h.DeleteMessage)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", nil)
	})
	return r
}
