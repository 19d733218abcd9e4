package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// PolicyHandler exposes QoS policy management, assignment and resolution endpoints.
type PolicyHandler struct {
	policies *services.PolicyService
}

// NewPolicyHandler constructs a policy handler.
func NewPolicyHandler(policies *services.PolicyService) (*PolicyHandler, error) {
	if policies == nil {
		return nil, errors.New("policy handler: policy service is required")
	}
	return &PolicyHandler{policies: policies}, nil
}

type createPolicyRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	BandwidthLimit int    `json:"bandwidth_limit" validate:"required,gt=0"`
	Priority       string `json:"priority" validate:"omitempty,qos_priority"`
	Description    string `json:"description" validate:"omitempty,max=1024"`
}

type updatePolicyRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=120"`
	BandwidthLimit *int    `json:"bandwidth_limit" validate:"omitempty,gt=0"`
	Priority       *string `json:"priority" validate:"omitempty,qos_priority"`
	Description    *string `json:"description" validate:"omitempty,max=1024"`
}

type assignPolicyRequest struct {
	PolicyID uint   `json:"policy_id" validate:"required,gt=0"`
	Note     string `json:"note" validate:"omitempty,max=255"`
}

// List returns every policy.
func (h *PolicyHandler) List(c *gin.Context) {
	policies, err := h.policies.ListPolicies(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, policies)
}

// Get returns one policy.
func (h *PolicyHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	policy, err := h.policies.GetPolicy(requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

// Create stores a new policy.
func (h *PolicyHandler) Create(c *gin.Context) {
	var body createPolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	policy, err := h.policies.CreatePolicy(requestContext(c), services.CreatePolicyInput{
		Name:           body.Name,
		BandwidthLimit: body.BandwidthLimit,
		Priority:       body.Priority,
		Description:    body.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, policy)
}

// Update applies a partial change to a policy.
func (h *PolicyHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updatePolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	policy, err := h.policies.UpdatePolicy(requestContext(c), id, services.UpdatePolicyInput{
		Name:           body.Name,
		BandwidthLimit: body.BandwidthLimit,
		Priority:       body.Priority,
		Description:    body.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

// Delete removes a policy and its assignments.
func (h *PolicyHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.policies.DeletePolicy(requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// AssignUser sets the user-level policy.
func (h *PolicyHandler) AssignUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body assignPolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	assignment, err := h.policies.AssignUserPolicy(requestContext(c), userID, body.PolicyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// RemoveUser clears the user-level policy.
func (h *PolicyHandler) RemoveUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.policies.RemoveUserPolicy(requestContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// AssignDevice sets the device-level override.
func (h *PolicyHandler) AssignDevice(c *gin.Context) {
	deviceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body assignPolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	assignment, err := h.policies.AssignDevicePolicy(requestContext(c), deviceID, body.PolicyID, callerName(c), body.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// RemoveDevice clears the device-level override.
func (h *PolicyHandler) RemoveDevice(c *gin.Context) {
	deviceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.policies.RemoveDevicePolicy(requestContext(c), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// Effective resolves the policy that applies to a device. A null payload means none applies.
func (h *PolicyHandler) Effective(c *gin.Context) {
	deviceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	effective, err := h.policies.ResolveEffectivePolicy(requestContext(c), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"effective_policy": effective})
}
