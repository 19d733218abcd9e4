package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/handlers"
)

func registerDeviceRoutes(admin *gin.RouterGroup, handler *handlers.DeviceHandler) {
	admin.GET("/users/:id/devices", handler.ListByUser)
	admin.PATCH("/devices/:id", handler.Update)
	admin.DELETE("/devices/:id", handler.Delete)
}
