package questions

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/askwave/liveqa/internal/events"
	"github.com/askwave/liveqa/internal/models"
	"github.com/askwave/liveqa/pkg/response"
)

// Store is the question persistence the handler needs.
type Store interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID, p ListParams) ([]models.Question, int, error)
	GetByID(ctx context.Context, eventID, id uuid.UUID) (*models.Question, error)
	Create(ctx context.Context, q *models.Question) (parentCount int, err error)
	Update(ctx context.Context, eventID, id uuid.UUID, content string) (*models.Question, error)
	Like(ctx context.Context, eventID, id uuid.UUID) (*models.Question, error)
}

// EventStore resolves the event a request is scoped to.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Broadcaster pushes live events to clients watching an event.
type Broadcaster interface {
	Broadcast(eventID uuid.UUID, ev models.LiveEvent)
}

// CreateRequest is the body for POST /events/:id/questions.
type CreateRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateRequest is the body for PUT /events/:id/questions/:questionID.
type UpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListResponse is the paginated list payload. Clients rely on data being
// ordered as requested (newest-first by default).
type ListResponse struct {
	Data  []models.Question `json:"data"`
	Count int               `json:"count"`
}

// Handler handles question HTTP endpoints and live broadcast.
type Handler struct {
	repo      Store
	eventRepo EventStore
	hub       Broadcaster
}

// NewHandler creates a questions handler.
func NewHandler(repo Store, eventRepo EventStore, hub Broadcaster) *Handler {
	return &Handler{repo: repo, eventRepo: eventRepo, hub: hub}
}

// ListByEvent handles GET /events/:id/questions. Query parameters:
// parent_id (scope to a follow-up thread), sort_by (created_at|likes),
// order (asc|desc), page, per_page.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}

	params := ListParams{
		SortBy: c.DefaultQuery("sort_by", "created_at"),
		Order:  c.DefaultQuery("order", "desc"),
	}
	if s := c.Query("parent_id"); s != "" {
		parentID, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid parent_id")
			return
		}
		params.ParentID = &parentID
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	params.Limit = perPage
	params.Offset = (page - 1) * perPage

	list, count, err := h.repo.ListByEvent(c.Request.Context(), eventID, params)
	if err != nil {
		response.Internal(c, "failed to list questions")
		return
	}
	if list == nil {
		list = []models.Question{}
	}
	c.JSON(http.StatusOK, ListResponse{Data: list, Count: count})
}

// Get handles GET /events/:id/questions/:questionID.
func (h *Handler) Get(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}

	q, err := h.repo.GetByID(c.Request.Context(), eventID, questionID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load question")
		return
	}
	response.OK(c, q)
}

// Create handles POST /events/:id/questions. user_name, attendee_identifier
// and parent_id come as query parameters; the body carries the content.
// The created question reaches watching clients via the live channel.
func (h *Handler) Create(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.BadRequest(c, "content must not be empty")
		return
	}

	q := &models.Question{
		EventID:            eventID,
		Content:            content,
		UserName:           c.Query("user_name"),
		AttendeeIdentifier: c.Query("attendee_identifier"),
	}
	if s := c.Query("parent_id"); s != "" {
		parentID, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid parent_id")
			return
		}
		q.ParentID = &parentID
	}

	parentCount, err := h.repo.Create(c.Request.Context(), q)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "parent question not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to create question")
		return
	}

	ev := models.LiveEvent{Type: models.EventNewQuestion, Data: *q}
	if q.ParentID != nil {
		ev.ParentUpdate = &models.ParentUpdate{FollowupCount: parentCount}
	}
	h.hub.Broadcast(eventID, ev)
	response.Created(c, q)
}

// Update handles PUT /events/:id/questions/:questionID. Only the author may
// edit: the attendee_identifier query parameter must match the one recorded
// at creation. The updated row reaches clients via the live channel.
func (h *Handler) Update(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.BadRequest(c, "content must not be empty")
		return
	}

	existing, err := h.repo.GetByID(c.Request.Context(), eventID, questionID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load question")
		return
	}
	identifier := c.Query("attendee_identifier")
	if existing.AttendeeIdentifier == "" || existing.AttendeeIdentifier != identifier {
		response.Forbidden(c, "not the question author")
		return
	}

	q, err := h.repo.Update(c.Request.Context(), eventID, questionID, content)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to update question")
		return
	}

	h.hub.Broadcast(eventID, models.LiveEvent{Type: models.EventQuestionUpdated, Data: *q})
	response.OK(c, q)
}

// Like handles POST /events/:id/questions/:questionID/like. The updated like
// count reaches clients via the live channel.
func (h *Handler) Like(c *gin.Context) {
	eventID, ok := h.eventID(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}

	q, err := h.repo.Like(c.Request.Context(), eventID, questionID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to like question")
		return
	}

	h.hub.Broadcast(eventID, models.LiveEvent{Type: models.EventQuestionLiked, Data: *q})
	response.OK(c, gin.H{"id": q.ID, "like_count": q.LikeCount})
}

func (h *Handler) eventID(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	if _, err := h.eventRepo.GetByID(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			response.NotFound(c, "event not found")
			return uuid.Nil, false
		}
		response.Internal(c, "failed to load event")
		return uuid.Nil, false
	}
	return eventID, true
}
