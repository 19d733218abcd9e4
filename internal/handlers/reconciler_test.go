package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	handlertest "github.com/charlesng35/ovpnhub/internal/handlers/testutil"
	"github.com/charlesng35/ovpnhub/internal/reconciler"
)

type fakeTrigger struct {
	result reconciler.CycleResult
	err    error
	last   *reconciler.LastRun
	calls  int
}

func (f *fakeTrigger) RunNow(context.Context) (reconciler.CycleResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeTrigger) LastRun() *reconciler.LastRun {
	return f.last
}

func TestReconcilerRun(t *testing.T) {
	trigger := &fakeTrigger{result: reconciler.CycleResult{Seen: 3, Created: 1, Updated: 1, Deactivated: 2}}
	env := handlertest.NewEnv(t, handlertest.WithReconciler(trigger))
	token := env.AdminToken()

	resp := env.Request(http.MethodPost, "/api/reconciler/run", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var payload struct {
		Result reconciler.CycleResult `json:"result"`
		Error  string                 `json:"error"`
	}
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &payload)
	require.Equal(t, trigger.result, payload.Result)
	require.Empty(t, payload.Error)
	require.Equal(t, 1, trigger.calls)

	trigger.err = errors.New("record alice/10.8.0.2: disk full")
	trigger.result = reconciler.CycleResult{Seen: 2, Updated: 1, Failed: 1}
	resp = env.Request(http.MethodPost, "/api/reconciler/run", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &payload)
	require.Equal(t, 1, payload.Result.Failed)
	require.Contains(t, payload.Error, "disk full")
}

func TestReconcilerRunErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "running", err: reconciler.ErrCycleRunning, status: http.StatusConflict, code: "CYCLE_RUNNING"},
		{name: "lease held", err: reconciler.ErrLeaseHeld, status: http.StatusConflict, code: "CYCLE_RUNNING"},
		{name: "source down", err: &reconciler.SourceUnavailableError{Err: errors.New("connection refused")}, status: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := handlertest.NewEnv(t, handlertest.WithReconciler(&fakeTrigger{err: tc.err}))

			resp := env.Request(http.MethodPost, "/api/reconciler/run", nil, env.AdminToken())
			require.Equal(t, tc.status, resp.Code, resp.Body.String())
			if tc.code != "" {
				require.Equal(t, tc.code, handlertest.DecodeResponse(t, resp).Error.Code)
			}
		})
	}
}

func TestReconcilerStatus(t *testing.T) {
	trigger := &fakeTrigger{}
	env := handlertest.NewEnv(t, handlertest.WithReconciler(trigger))
	token := env.AdminToken()

	resp := env.Request(http.MethodGet, "/api/reconciler/status", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"last_run":null}`, string(handlertest.DecodeResponse(t, resp).Data))

	trigger.last = &reconciler.LastRun{
		StartedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Duration:  time.Second,
		Result:    reconciler.CycleResult{Seen: 4},
	}
	resp = env.Request(http.MethodGet, "/api/reconciler/status", nil, token)
	var payload struct {
		LastRun reconciler.LastRun `json:"last_run"`
	}
	handlertest.DecodeInto(t, handlertest.DecodeResponse(t, resp).Data, &payload)
	require.Equal(t, 4, payload.LastRun.Result.Seen)
	require.True(t, payload.LastRun.StartedAt.Equal(trigger.last.StartedAt))

	resp = env.Request(http.MethodGet, "/api/reconciler/status", nil, env.TokenFor(env.CreateUser("nonadmin")))
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestReconcilerDisabled(t *testing.T) {
	env := handlertest.NewEnv(t)
	token := env.AdminToken()

	resp := env.Request(http.MethodPost, "/api/reconciler/run", nil, token)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Equal(t, "RECONCILER_DISABLED", handlertest.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodGet, "/api/reconciler/status", nil, token)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
