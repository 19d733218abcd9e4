package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/ovpnhub/internal/profile"
	"github.com/charlesng35/ovpnhub/internal/reconciler"
	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/pkg/cidr"
	appErrors "github.com/charlesng35/ovpnhub/pkg/errors"
	"github.com/charlesng35/ovpnhub/pkg/logger"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

var (
	errCycleRunning  = appErrors.New("CYCLE_RUNNING", "A reconciliation cycle is already running", http.StatusConflict)
	errLeaseHeld     = appErrors.New("CYCLE_RUNNING", "Another replica is running a reconciliation cycle", http.StatusConflict)
	errReconcilerOff = appErrors.New("RECONCILER_DISABLED", "The reconciler is disabled", http.StatusServiceUnavailable)
)

// respondError translates store and domain errors into the API error envelope.
func respondError(c *gin.Context, err error) {
	translated := appErrors.FromError(translateError(err))
	if translated.StatusCode >= http.StatusInternalServerError {
		logger.WithModule("http").Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, translated)
}

func translateError(err error) error {
	var (
		validation  *services.ValidationError
		cidrErr     *cidr.ValidationError
		unavailable *reconciler.SourceUnavailableError
	)

	switch {
	case err == nil:
		return nil
	case errors.As(err, &validation):
		return appErrors.NewValidation(validation.Field+" "+validation.Message, err)
	case errors.As(err, &cidrErr):
		return appErrors.NewValidation(cidrErr.Error(), err)
	case errors.Is(err, services.ErrUserNotFound):
		return appErrors.NewNotFound("user")
	case errors.Is(err, services.ErrDeviceNotFound):
		return appErrors.NewNotFound("device")
	case errors.Is(err, services.ErrPolicyNotFound):
		return appErrors.NewNotFound("policy")
	case errors.Is(err, services.ErrNetworkNotFound):
		return appErrors.NewNotFound("network")
	case errors.Is(err, services.ErrPolicyExists):
		return appErrors.New(appErrors.ErrConflict.Code, "A policy with this name already exists", http.StatusConflict)
	case errors.Is(err, services.ErrNetworkExists):
		return appErrors.New(appErrors.ErrConflict.Code, "This network is already registered for the user", http.StatusConflict)
	case errors.Is(err, reconciler.ErrCycleRunning):
		return errCycleRunning
	case errors.Is(err, reconciler.ErrLeaseHeld):
		return errLeaseHeld
	case errors.As(err, &unavailable):
		return appErrors.ErrServiceUnavailable.WithInternal(err)
	case errors.Is(err, profile.ErrCredentialsUnavailable):
		return appErrors.New(appErrors.ErrServiceUnavailable.Code, "Client credentials are not available", http.StatusServiceUnavailable).WithInternal(err)
	default:
		return appErrors.FromError(err)
	}
}
