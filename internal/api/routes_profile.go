package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/handlers"
)

func registerProfileRoutes(api, admin *gin.RouterGroup, handler *handlers.ProfileHandler) {
	api.GET("/profile", handler.Mine)
	admin.GET("/users/:id/profile", handler.ForUser)
}
