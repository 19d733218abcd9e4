package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/handlers"
)

func registerNetworkRoutes(admin *gin.RouterGroup, handler *handlers.NetworkHandler) {
	admin.POST("/users/:id/networks", handler.Register)
	admin.GET("/users/:id/networks", handler.List)
	admin.PATCH("/networks/:id", handler.Update)
	admin.DELETE("/networks/:id", handler.Delete)
}
