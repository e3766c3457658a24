package livesync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

// ErrSessionClosed is returned by operations on a disposed session.
var ErrSessionClosed = errors.New("session closed")

const resyncTimeout = 15 * time.Second

// Session binds a repository, engine, loader and channel into one event
// view. It is the unit of lifecycle: construct per viewed event, Open once,
// Close on teardown. User actions (Ask, FollowUp, Like) go to the
// repository and never touch local state; the engine materializes them when
// the server's push event arrives.
type Session struct {
	eventID uuid.UUID
	repo    Repository
	engine  *Engine
	loader  *ThreadLoader
	channel *Channel
	logger  *zap.Logger

	onChange func(models.LiveEvent)
	perPage  int
	closed   atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger attaches a logger to the session and its channel.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithOnChange sets a hook invoked after each live event has been applied.
// This is the rendering layer's signal to re-read the projections.
func WithOnChange(fn func(models.LiveEvent)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// WithRepository overrides the HTTP repository client.
func WithRepository(repo Repository) SessionOption {
	return func(s *Session) { s.repo = repo }
}

// WithSnapshotSize sets how many top-level questions the initial snapshot
// fetch requests (default 50).
func WithSnapshotSize(n int) SessionOption {
	return func(s *Session) { s.perPage = n }
}

// NewSession creates a session for one event against the given base URL
// (e.g. http://localhost:8080).
func NewSession(baseURL string, eventID uuid.UUID, opts ...SessionOption) (*Session, error) {
	s := &Session{
		eventID: eventID,
		logger:  zap.NewNop(),
		perPage: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo == nil {
		s.repo = NewClient(baseURL, WithClientLogger(s.logger))
	}
	s.engine = NewEngine(s.logger)
	s.loader = NewThreadLoader(s.engine, s.repo, eventID)

	wsURL, err := streamURL(baseURL, eventID)
	if err != nil {
		return nil, err
	}
	s.channel = NewChannel(wsURL, s.handleEvent,
		WithChannelLogger(s.logger),
		WithOnReconnect(s.resyncAfterReconnect),
	)
	return s, nil
}

// Open seeds the engine from the initial snapshot fetch, then opens the live
// channel. Fetch or dial failures are surfaced to the caller; nothing is
// retried here.
func (s *Session) Open(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := s.resync(ctx); err != nil {
		return err
	}
	return s.channel.Start(ctx)
}

// Close disposes the session: the channel closes with a normal closure code
// and any in-flight fetch results are discarded instead of applied.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.channel.Close()
}

// Ask submits a top-level question. The question appears in the view only
// once the server pushes it back.
func (s *Session) Ask(ctx context.Context, content, userName string, anonymous bool) error {
	return s.create(ctx, content, userName, anonymous, nil)
}

// FollowUp submits a follow-up under a parent question.
func (s *Session) FollowUp(ctx context.Context, parentID uuid.UUID, content, userName string, anonymous bool) error {
	return s.create(ctx, content, userName, anonymous, &parentID)
}

// Like registers a like; the updated count arrives via the channel.
func (s *Session) Like(ctx context.Context, questionID uuid.UUID) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.repo.LikeQuestion(ctx, s.eventID, questionID)
}

// Expand lazily loads a parent's follow-up thread.
func (s *Session) Expand(ctx context.Context, parentID uuid.UUID) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.loader.Expand(ctx, parentID)
}

// Collapse hides a thread without evicting its loaded follow-ups.
func (s *Session) Collapse(parentID uuid.UUID) {
	s.loader.Collapse(parentID)
}

// Expanded reports whether a thread is open in the view.
func (s *Session) Expanded(parentID uuid.UUID) bool {
	return s.loader.Expanded(parentID)
}

// TopLevel returns the reconciled top-level questions, newest-first.
func (s *Session) TopLevel() []models.Question {
	return s.engine.TopLevel()
}

// FollowUps returns the loaded follow-ups of a parent, newest-first.
func (s *Session) FollowUps(parentID uuid.UUID) []models.Question {
	return s.engine.FollowUps(parentID)
}

// State returns the live channel's connection state.
func (s *Session) State() State {
	return s.channel.State()
}

func (s *Session) create(ctx context.Context, content, userName string, anonymous bool, parentID *uuid.UUID) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	identifier := userName
	if anonymous {
		identifier = ""
	}
	return s.repo.CreateQuestion(ctx, s.eventID, CreateParams{
		Content:            content,
		UserName:           userName,
		AttendeeIdentifier: identifier,
		ParentID:           parentID,
	})
}

func (s *Session) handleEvent(ev models.LiveEvent) {
	if s.closed.Load() {
		return
	}
	s.engine.Apply(ev)
	if s.onChange != nil {
		s.onChange(ev)
	}
}

// resync fetches a fresh snapshot and seeds the engine, unless the session
// was closed while the fetch was in flight.
func (s *Session) resync(ctx context.Context) error {
	qs, err := s.repo.ListQuestions(ctx, s.eventID, ListOptions{
		SortBy:  SortByCreatedAt,
		Order:   OrderDesc,
		Page:    1,
		PerPage: s.perPage,
	})
	if err != nil {
		return err
	}
	if s.closed.Load() {
		return nil
	}
	s.engine.Seed(qs)
	return nil
}

// resyncAfterReconnect closes the gap a dropped connection leaves: pushes
// sent while disconnected are gone, so the snapshot is refetched.
func (s *Session) resyncAfterReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if err := s.resync(ctx); err != nil {
		s.logger.Warn("resync after reconnect failed", zap.Error(err))
	}
}

func streamURL(baseURL string, eventID uuid.UUID) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/v1/ws/events/" + eventID.String()
	u.RawQuery = ""
	return u.String(), nil
}
