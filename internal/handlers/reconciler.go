package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/reconciler"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// CycleTrigger runs reconciliation on demand and reports the last outcome.
type CycleTrigger interface {
	RunNow(ctx context.Context) (reconciler.CycleResult, error)
	LastRun() *reconciler.LastRun
}

// ReconcilerHandler lets administrators trigger and inspect reconciliation.
type ReconcilerHandler struct {
	trigger CycleTrigger
}

// NewReconcilerHandler constructs a handler. A nil trigger means the reconciler is
// disabled and every endpoint answers 503.
func NewReconcilerHandler(trigger CycleTrigger) *ReconcilerHandler {
	return &ReconcilerHandler{trigger: trigger}
}

// Run executes one cycle synchronously and returns its counts.
func (h *ReconcilerHandler) Run(c *gin.Context) {
	if h.trigger == nil {
		response.Error(c, errReconcilerOff)
		return
	}

	result, err := h.trigger.RunNow(requestContext(c))
	if err != nil {
		if !isPartialFailure(err) {
			respondError(c, err)
			return
		}
		// Partial failures still report what was applied.
		response.Success(c, http.StatusOK, gin.H{"result": result, "error": err.Error()})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Status returns the most recent cycle outcome, or null before the first cycle.
func (h *ReconcilerHandler) Status(c *gin.Context) {
	if h.trigger == nil {
		response.Error(c, errReconcilerOff)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"last_run": h.trigger.LastRun()})
}

// isPartialFailure reports a cycle that ran but could not apply every write.
func isPartialFailure(err error) bool {
	var unavailable *reconciler.SourceUnavailableError
	switch {
	case errors.As(err, &unavailable),
		errors.Is(err, reconciler.ErrCycleRunning),
		errors.Is(err, reconciler.ErrLeaseHeld),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
