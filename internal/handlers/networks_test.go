package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	handlertest "github.com/charlesng35/ovpnhub/internal/handlers/testutil"
	"github.com/charlesng35/ovpnhub/internal/models"
)

func TestNetworkLifecycle(t *testing.T) {
	env := handlertest.NewEnv(t)
	token := env.AdminToken()
	user := env.CreateUser("carol")
	base := "/api/users/" + itoa(user.ID) + "/networks"

	resp := env.Request(http.MethodPost, base, map[string]any{"cidr": "192.168.10.0/24", "description": "home"}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var home models.LanNetwork
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &home)
	require.Equal(t, "192.168.10.0", home.NetworkAddress)
	require.Equal(t, "255.255.255.0", home.SubnetMask)
	require.True(t, home.Enabled)

	resp = env.Request(http.MethodPost, base, map[string]any{"cidr": "10.1.0.0/16", "enabled": false}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, base, map[string]any{"cidr": "192.168.10.0/24"}, token)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = env.Request(http.MethodGet, base+"?enabled=true", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	var enabled []models.LanNetwork
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &enabled)
	require.Len(t, enabled, 1)

	resp = env.Request(http.MethodGet, base, nil, token)
	var all []models.LanNetwork
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &all)
	require.Len(t, all, 2)

	resp = env.Request(http.MethodPatch, "/api/networks/"+itoa(home.ID), map[string]any{"cidr": "192.168.20.0/23", "enabled": false}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var moved models.LanNetwork
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &moved)
	require.Equal(t, "255.255.254.0", moved.SubnetMask)
	require.False(t, moved.Enabled)

	resp = env.Request(http.MethodDelete, "/api/networks/"+itoa(home.ID), nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = env.Request(http.MethodDelete, "/api/networks/"+itoa(home.ID), nil, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestNetworkRejectsInvalidCIDR(t *testing.T) {
	env := handlertest.NewEnv(t)
	token := env.AdminToken()
	user := env.CreateUser("dave")
	base := "/api/users/" + itoa(user.ID) + "/networks"

	for _, value := range []string{"300.1.1.0/24", "10.0.0.0/33", "10.0.0.0"} {
		resp := env.Request(http.MethodPost, base, map[string]any{"cidr": value}, token)
		require.Equal(t, http.StatusBadRequest, resp.Code, value)
		require.Contains(t, handlertest.DecodeResponse(t, resp).Error.Message, "cidr")
	}

	resp := env.Request(http.MethodGet, base+"?enabled=maybe", nil, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, "/api/users/987654/networks", map[string]any{"cidr": "10.0.0.0/8"}, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
