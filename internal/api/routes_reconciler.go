package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/handlers"
)

func registerReconcilerRoutes(admin *gin.RouterGroup, handler *handlers.ReconcilerHandler) {
	group := admin.Group("/reconciler")
	group.POST("/run", handler.Run)
	group.GET("/status", handler.Status)
}
