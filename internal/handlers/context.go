package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// callerName identifies the authenticated caller for audit fields such as assigned_by.
func callerName(c *gin.Context) string {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return ""
	}
	if claims.Username != "" {
		return claims.Username
	}
	return claims.Subject
}
