package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

// HealthHandler evaluates liveness and readiness probes.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler constructs a health handler. A nil manager reports the endpoints as disabled.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Live reports whether the process is serving requests.
func (h *HealthHandler) Live(c *gin.Context) {
	if h.manager == nil {
		disabledHealth(c)
		return
	}
	writeHealthReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready evaluates dependency probes. Degraded dependencies are reported but keep the
// instance in rotation; only a down dependency answers 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.manager == nil {
		disabledHealth(c)
		return
	}
	writeHealthReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func disabledHealth(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
