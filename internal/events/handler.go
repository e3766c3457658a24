package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/askwave/liveqa/internal/models"
	"github.com/askwave/liveqa/pkg/response"
)

// Store is the event persistence the handler needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetByCode(ctx context.Context, code string) (*models.Event, error)
}

// Handler serves read-only event lookups. Event management is out of scope
// for this service.
type Handler struct {
	repo Store
}

// NewHandler creates an events handler.
func NewHandler(repo Store) *Handler {
	return &Handler{repo: repo}
}

// GetByID handles GET /api/v1/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, event)
}

// GetByCode handles GET /api/v1/events/code/:code, the audience join flow:
// attendees type a short code and resolve it to the event.
func (h *Handler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		response.BadRequest(c, "missing event code")
		return
	}
	event, err := h.repo.GetByCode(c.Request.Context(), code)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, event)
}
