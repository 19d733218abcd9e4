package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/handlers"
)

func registerPolicyRoutes(admin *gin.RouterGroup, handler *handlers.PolicyHandler) {
	policies := admin.Group("/policies")
	{
		policies.GET("", handler.List)
		policies.POST("", handler.Create)
		policies.GET("/:id", handler.Get)
		policies.PATCH("/:id", handler.Update)
		policies.DELETE("/:id", handler.Delete)
	}

	admin.PUT("/users/:id/policy", handler.AssignUser)
	admin.DELETE("/users/:id/policy", handler.RemoveUser)
	admin.PUT("/devices/:id/policy", handler.AssignDevice)
	admin.DELETE("/devices/:id/policy", handler.RemoveDevice)
	admin.GET("/devices/:id/effective-policy", handler.Effective)
}
