package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/app"
	iauth "github.com/charlesng35/ovpnhub/internal/auth"
	"github.com/charlesng35/ovpnhub/internal/handlers"
	"github.com/charlesng35/ovpnhub/internal/middleware"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
	"github.com/charlesng35/ovpnhub/internal/services"
)

// Dependencies carries everything the HTTP surface needs. Reconciler is nil when
// reconciliation is disabled; Monitoring is nil when metrics and health are off.
type Dependencies struct {
	DB         *gorm.DB
	JWT        *iauth.JWTService
	Config     *app.Config
	Renderer   handlers.ProfileRenderer
	Reconciler handlers.CycleTrigger
	Monitoring *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Renderer == nil {
		return nil, errors.New("profile renderer must be provided")
	}

	users, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}
	devices, err := services.NewDeviceService(deps.DB)
	if err != nil {
		return nil, err
	}
	policies, err := services.NewPolicyService(deps.DB)
	if err != nil {
		return nil, err
	}
	networks, err := services.NewNetworkService(deps.DB)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps.Config, deps.Monitoring)
	registerMetricsRoute(r, deps.Config, deps.Monitoring)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))
	admin := api.Group("")
	admin.Use(middleware.RequireAdmin())

	policyHandler, err := handlers.NewPolicyHandler(policies)
	if err != nil {
		return nil, err
	}
	registerPolicyRoutes(admin, policyHandler)

	deviceHandler, err := handlers.NewDeviceHandler(devices, users)
	if err != nil {
		return nil, err
	}
	registerDeviceRoutes(admin, deviceHandler)

	networkHandler, err := handlers.NewNetworkHandler(networks, users)
	if err != nil {
		return nil, err
	}
	registerNetworkRoutes(admin, networkHandler)

	profileHandler, err := handlers.NewProfileHandler(deps.Renderer)
	if err != nil {
		return nil, err
	}
	registerProfileRoutes(api, admin, profileHandler)

	registerReconcilerRoutes(admin, handlers.NewReconcilerHandler(deps.Reconciler))
	registerMonitoringRoutes(admin, handlers.NewMonitoringHandler(deps.Monitoring, deps.Config))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if mon == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(mon.Handler()))
}
