package httpapi

import (
	"contact-intake/internal/auth"
	"contact-intake/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Mount registers the admin API on g. Login is public; everything else
// requires an access token, and mutations require the admin role.
func (h Handlers) Mount(g *gin.RouterGroup) {
	g.POST("/login", h.Login)

	authed := g.Group("")
	authed.Use(auth.RequireAccessToken(h.Auth))

	read := rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleViewer)
	write := rbac.RequireAnyRole(rbac.RoleAdmin)

	authed.POST("/crm/test", write, h.TestCRM)

	authed.GET("/rate-limits", read, h.ListRateLimits)
	authed.GET("/rate-limits/status", read, h.RateLimitStatus)
	authed.DELETE("/rate-limits", write, h.ClearRateLimits)
	authed.DELETE("/rate-limits/:ip", write, h.ClearRateLimit)

	authed.GET("/submissions", read, h.ListSubmissions)
	authed.GET("/submissions/:id", read, h.GetSubmission)
	authed.POST("/submissions/rotate", write, h.RotateSubmissions)

	authed.GET("/stats", read, h.Stats)
}
