package main

import (
	"net/http"
	"time"

	"contact-intake/internal/clientip"
	"contact-intake/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app, db *sqlx.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.Use(clientip.Middleware())

	// contact form (public, form token protected)
	contact := v1.Group("/contact")
	{
		contact.GET("/token", a.intake.FormToken)
		contact.POST("", a.intake.Submit)
	}

	// ADMIN routes
	a.admin.Mount(v1.Group("/admin"))
}
