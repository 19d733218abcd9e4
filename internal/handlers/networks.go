package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// NetworkHandler exposes per-user LAN network registration.
type NetworkHandler struct {
	networks *services.NetworkService
	users    *services.UserService
}

// NewNetworkHandler constructs a network handler.
func NewNetworkHandler(networks *services.NetworkService, users *services.UserService) (*NetworkHandler, error) {
	if networks == nil || users == nil {
		return nil, errors.New("network handler: network and user services are required")
	}
	return &NetworkHandler{networks: networks, users: users}, nil
}

// CIDR syntax is validated by the registry so the response carries the precise reason.
type registerNetworkRequest struct {
	CIDR        string `json:"cidr" validate:"required"`
	Description string `json:"description" validate:"omitempty,max=255"`
	Enabled     *bool  `json:"enabled"`
}

type updateNetworkRequest struct {
	CIDR        *string `json:"cidr"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Enabled     *bool   `json:"enabled"`
}

// Register adds a network for the user in the path.
func (h *NetworkHandler) Register(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body registerNetworkRequest
	if !bindAndValidate(c, &body) {
		return
	}

	network, err := h.networks.Register(requestContext(c), services.RegisterNetworkInput{
		UserID:      userID,
		CIDR:        body.CIDR,
		Description: body.Description,
		Enabled:     body.Enabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, network)
}

// List returns the user's networks; ?enabled=true restricts to the routed ones.
func (h *NetworkHandler) List(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	enabledOnly, ok := parseBoolQuery(c, "enabled")
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

	list := h.networks.List
	if enabledOnly {
		list = h.networks.ListEnabled
	}
	networks, err := list(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, networks)
}

// Update toggles, re-addresses or re-describes a network.
func (h *NetworkHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateNetworkRequest
	if !bindAndValidate(c, &body) {
		return
	}

	network, err := h.networks.Update(requestContext(c), id, services.UpdateNetworkInput{
		CIDR:        body.CIDR,
		Description: body.Description,
		Enabled:     body.Enabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, network)
}

// Delete removes a network.
func (h *NetworkHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.networks.Delete(requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
