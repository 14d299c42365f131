package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-campaigns/internal/campaigns"
	"voice-campaigns/internal/httpkit"
	"voice-campaigns/internal/rbac"
	"voice-campaigns/internal/webhook"
)

type routeDeps struct {
	authMW        gin.HandlerFunc
	limiter       *httpkit.IPRateLimiter
	webhook       *webhook.Handler
	webhookSecret string
	campaigns     *campaigns.Handler
	ready         func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := d.ready(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks. Not rate limited: the provider retries on 429.
	r.POST("/webhooks/provider", httpkit.SharedSecret("X-Vapi-Secret", d.webhookSecret), d.webhook.Receive)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.limiter.Middleware(), d.authMW, rbac.RequireOrganization())
	d.campaigns.Register(v1)
}
