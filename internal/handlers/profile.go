package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ovpnhub/internal/middleware"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
	"github.com/charlesng35/ovpnhub/internal/profile"
	"github.com/charlesng35/ovpnhub/internal/services"
	appErrors "github.com/charlesng35/ovpnhub/pkg/errors"
	"github.com/charlesng35/ovpnhub/pkg/response"
)

// ProfileRenderer produces a client configuration for a user.
type ProfileRenderer interface {
	RenderDocument(ctx context.Context, userID uint) (profile.Document, error)
}

// ProfileHandler serves rendered client profiles as downloads.
type ProfileHandler struct {
	renderer ProfileRenderer
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(renderer ProfileRenderer) (*ProfileHandler, error) {
	if renderer == nil {
		return nil, errors.New("profile handler: renderer is required")
	}
	return &ProfileHandler{renderer: renderer}, nil
}

// Mine renders the authenticated caller's own profile.
func (h *ProfileHandler) Mine(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.render(c, claims.UserID)
}

// ForUser renders the profile of the user in the path.
func (h *ProfileHandler) ForUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	h.render(c, userID)
}

func (h *ProfileHandler) render(c *gin.Context, userID uint) {
	ctx := requestContext(c)
	start := time.Now()

	doc, err := h.renderer.RenderDocument(ctx, userID)
	if err != nil {
		monitoring.RecordProfileRender(renderResult(err), time.Since(start))
		respondError(c, err)
		return
	}

	monitoring.RecordProfileRender("success", time.Since(start))
	response.Profile(c, doc.FileName, doc.Body)
}

func renderResult(err error) string {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, profile.ErrCredentialsUnavailable):
		return "credentials_unavailable"
	default:
		return "error"
	}
}
