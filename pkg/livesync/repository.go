package livesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

// Sort keys and orders accepted by the question listing API.
const (
	SortByCreatedAt = "created_at"
	SortByLikes     = "likes"
	OrderAsc        = "asc"
	OrderDesc       = "desc"
)

// Error kinds carried by RepositoryError.
const (
	ErrKindNetwork = "network"
	ErrKindStatus  = "status"
	ErrKindDecode  = "decode"
)

// RepositoryError is returned for failed repository calls. The engine never
// retries; retry policy belongs to the caller.
type RepositoryError struct {
	Kind   string
	Op     string
	Status int // HTTP status for ErrKindStatus, 0 otherwise
	Err    error
}

func (e *RepositoryError) Error() string {
	if e.Kind == ErrKindStatus {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ListOptions scopes and pages a question listing.
type ListOptions struct {
	ParentID *uuid.UUID // nil lists top-level questions
	SortBy   string
	Order    string
	Page     int // 1-based
	PerPage  int
}

// CreateParams carries a new question. An empty AttendeeIdentifier means the
// author chose anonymity.
type CreateParams struct {
	Content            string
	UserName           string
	AttendeeIdentifier string
	ParentID           *uuid.UUID
}

// Repository is the question store the sync engine reads from and writes
// through. Create and like are fire-and-forget: the resulting state change
// reaches the engine only via the live channel, never from a return value,
// so a single source of truth decides insertion and no optimistic local
// write can race the server echo.
type Repository interface {
	ListQuestions(ctx context.Context, eventID uuid.UUID, opts ListOptions) ([]models.Question, error)
	CreateQuestion(ctx context.Context, eventID uuid.UUID, p CreateParams) error
	LikeQuestion(ctx context.Context, eventID, questionID uuid.UUID) error
}

// Client is the HTTP implementation of Repository.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger attaches a logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a repository client for the given base URL
// (e.g. http://localhost:8080).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listEnvelope struct {
	Data  []models.Question `json:"data"`
	Count int               `json:"count"`
}

// ListQuestions fetches one page of questions, top-level or scoped to a
// parent thread, ordered as requested (newest-first by default).
func (c *Client) ListQuestions(ctx context.Context, eventID uuid.UUID, opts ListOptions) ([]models.Question, error) {
	const op = "list questions"

	q := url.Values{}
	q.Set("sort_by", defaultString(opts.SortBy, SortByCreatedAt))
	q.Set("order", defaultString(opts.Order, OrderDesc))
	if opts.ParentID != nil {
		q.Set("parent_id", opts.ParentID.String())
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	endpoint := fmt.Sprintf("%s/api/v1/events/%s/questions?%s", c.baseURL, eventID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RepositoryError{Kind: ErrKindNetwork, Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RepositoryError{Kind: ErrKindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &RepositoryError{Kind: ErrKindStatus, Op: op, Status: resp.StatusCode}
	}

	var body listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &RepositoryError{Kind: ErrKindDecode, Op: op, Err: err}
	}
	c.logger.Debug("listed questions",
		zap.String("event_id", eventID.String()),
		zap.Int("page_size", len(body.Data)),
		zap.Int("total", body.Count))
	return body.Data, nil
}

// CreateQuestion submits a question or follow-up. The created question is
// not returned; it arrives over the live channel.
func (c *Client) CreateQuestion(ctx context.Context, eventID uuid.UUID, p CreateParams) error {
	const op = "create question"

	q := url.Values{}
	if p.UserName != "" {
		q.Set("user_name", p.UserName)
	}
	if p.AttendeeIdentifier != "" {
		q.Set("attendee_identifier", p.AttendeeIdentifier)
	}
	if p.ParentID != nil {
		q.Set("parent_id", p.ParentID.String())
	}

	payload, err := json.Marshal(map[string]string{"content": p.Content})
	if err != nil {
		return &RepositoryError{Kind: ErrKindDecode, Op: op, Err: err}
	}
	endpoint := fmt.Sprintf("%s/api/v1/events/%s/questions", c.baseURL, eventID)
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	return c.post(ctx, op, endpoint, payload, http.StatusCreated)
}

// LikeQuestion registers a like. The updated count arrives over the live
// channel.
func (c *Client) LikeQuestion(ctx context.Context, eventID, questionID uuid.UUID) error {
	const op = "like question"
	endpoint := fmt.Sprintf("%s/api/v1/events/%s/questions/%s/like", c.baseURL, eventID, questionID)
	return c.post(ctx, op, endpoint, nil, http.StatusOK)
}

func (c *Client) post(ctx context.Context, op, endpoint string, payload []byte, wantStatus int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &RepositoryError{Kind: ErrKindNetwork, Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RepositoryError{Kind: ErrKindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		return &RepositoryError{Kind: ErrKindStatus, Op: op, Status: resp.StatusCode}
	}
	return nil
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
