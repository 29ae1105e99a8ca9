package clientip

import (
	"context"

	"contact-intake/pkg/logger"

	"github.com/gin-gonic/gin"
)

// clientIPKey is an unexported context key for passing client IP through internal layers.
type clientIPKey struct{}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// FromContext returns the resolved client IP, or Unknown when none was attached.
func FromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok && s != "" {
		return s
	}
	return Unknown
}

// Middleware resolves the client IP once per request and attaches it to both
// the request context and the gin context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := Resolve(c.Request.Header, c.Request.RemoteAddr)
		c.Set(logger.ClientIPKey, ip)
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}
