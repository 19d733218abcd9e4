package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/api"
	"github.com/charlesng35/ovpnhub/internal/app"
	iauth "github.com/charlesng35/ovpnhub/internal/auth"
	sharedtestutil "github.com/charlesng35/ovpnhub/internal/database/testutil"
	"github.com/charlesng35/ovpnhub/internal/handlers"
	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
	"github.com/charlesng35/ovpnhub/internal/profile"
	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// TestCA is the CA block every test profile embeds.
const TestCA = "-----BEGIN CERTIFICATE-----\nTESTCA\n-----END CERTIFICATE-----"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Monitoring *monitoring.Module
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	reconciler handlers.CycleTrigger
}

// WithReconciler exposes the trigger through /api/reconciler.
func WithReconciler(trigger handlers.CycleTrigger) EnvOption {
	return func(cfg *envConfig) {
		cfg.reconciler = trigger
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var options envConfig
	for _, opt := range opts {
		opt(&options)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Profile: app.ProfileConfig{
			RemoteHost: "vpn.example.com",
			RemotePort: 1194,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	renderer := mustRenderer(t, db, cfg)

	router, err := api.NewRouter(api.Dependencies{
		DB:         db,
		JWT:        jwtSvc,
		Config:     cfg,
		Renderer:   renderer,
		Reconciler: options.reconciler,
		Monitoring: mod,
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		JWT:        jwtSvc,
		Monitoring: mod,
	}
}

func mustRenderer(t *testing.T, db *gorm.DB, cfg *app.Config) *profile.Renderer {
	t.Helper()

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	devices, err := services.NewDeviceService(db)
	require.NoError(t, err)
	policies, err := services.NewPolicyService(db)
	require.NoError(t, err)
	networks, err := services.NewNetworkService(db)
	require.NoError(t, err)

	renderer, err := profile.NewRenderer(cfg.Profile.RendererConfig(), users, devices, policies, networks,
		profile.StaticCredentials{CA: TestCA})
	require.NoError(t, err)
	return renderer
}

// CreateUser inserts an active user with a random suffix and returns the record.
func (e *Env) CreateUser(prefix string) *models.User {
	e.T.Helper()
	return sharedtestutil.MustCreateUser(e.T, e.DB, prefix+"-"+uuid.NewString()[:8])
}

// TokenFor issues an access token for the user carrying the given roles.
func (e *Env) TokenFor(user *models.User, roles ...string) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    roles,
	})
	require.NoError(e.T, err)
	return token
}

// AdminToken creates an administrator and returns a token for it.
func (e *Env) AdminToken() string {
	e.T.Helper()
	return e.TokenFor(e.CreateUser("admin"), iauth.RoleAdmin)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	switch payload := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case string:
		buf = bytes.NewBufferString(payload)
	default:
		data, err := json.Marshal(payload)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
