package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/app"
	"github.com/charlesng35/ovpnhub/internal/handlers"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	var manager *monitoring.HealthManager
	if cfg.Monitoring.Health.Enabled && mon != nil {
		manager = mon.Health()
	}
	handler := handlers.NewHealthHandler(manager)

	r.GET("/health", handler.Live)
	r.GET("/health/live", handler.Live)
	r.GET("/health/ready", handler.Ready)
}
