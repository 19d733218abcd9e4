package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// DeviceHandler exposes the device registry to administrators.
type DeviceHandler struct {
	devices *services.DeviceService
	users   *services.UserService
}

// NewDeviceHandler constructs a device handler.
func NewDeviceHandler(devices *services.DeviceService, users *services.UserService) (*DeviceHandler, error) {
	if devices == nil || users == nil {
		return nil, errors.New("device handler: device and user services are required")
	}
	return &DeviceHandler{devices: devices, users: users}, nil
}

type updateDeviceRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=120"`
	DeviceType *string `json:"device_type" validate:"omitempty,oneof=desktop laptop mobile tablet"`
}

// ListByUser returns the user's devices, active and most recent first.
func (h *DeviceHandler) ListByUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := requestContext(c)

	exists, err := h.users.Exists(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		respondError(c, services.ErrUserNotFound)
		return
	}

	devices, err := h.devices.ListByUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, devices)
}

// Update renames a device or changes its type.
func (h *DeviceHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateDeviceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	device, err := h.devices.Update(requestContext(c), id, services.UpdateDeviceInput{
		Name:       body.Name,
		DeviceType: body.DeviceType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// Delete removes a device. The reconciler recreates it on its next sighting.
func (h *DeviceHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.devices.Delete(requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
