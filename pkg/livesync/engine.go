package livesync

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

// Engine reconciles an initial snapshot of an event's questions with the
// stream of live events pushed over the channel. It owns two ordered
// containers (top-level questions and loaded follow-ups) and exposes
// read-only projections of them.
//
// One Engine serves one event view. The websocket read goroutine and the
// view's own goroutine are the only mutators; the mutex serializes them so
// every snapshot or event is applied to completion before the next.
type Engine struct {
	mu        sync.RWMutex
	topLevel  *questionList
	followUps *questionList
	byParent  map[uuid.UUID][]uuid.UUID // follow-up ids per parent, newest-first
	logger    *zap.Logger
}

// NewEngine creates an empty engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		topLevel:  newQuestionList(),
		followUps: newQuestionList(),
		byParent:  make(map[uuid.UUID][]uuid.UUID),
		logger:    logger,
	}
}

// Seed replaces the top-level collection wholesale with the snapshot,
// preserving server-provided order (newest-first; no resort). Loaded
// follow-ups survive a re-seed so a resynced view does not have to refetch
// expanded threads.
func (e *Engine) Seed(snapshot []models.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topLevel.replaceAll(snapshot)
}

// Apply merges one live event into the engine state. Applying the same
// event twice leaves the same state as applying it once: creations
// deduplicate by id and updates replace by id, which is what makes the
// at-least-once channel safe to consume.
func (e *Engine) Apply(ev models.LiveEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case models.EventNewQuestion:
		if ev.Data.ParentID == nil {
			e.topLevel.insertFront(ev.Data)
			return
		}
		e.applyFollowUp(ev)
	case models.EventQuestionUpdated, models.EventQuestionLiked:
		e.applyUpdate(ev.Data)
	default:
		e.logger.Debug("unknown live event type", zap.String("type", ev.Type))
	}
}

func (e *Engine) applyFollowUp(ev models.LiveEvent) {
	parentID := *ev.Data.ParentID
	inserted := e.followUps.insertFront(ev.Data)
	if inserted {
		e.byParent[parentID] = append([]uuid.UUID{ev.Data.ID}, e.byParent[parentID]...)
	}

	// The parent may not be loaded (or may have scrolled out of the
	// snapshot); the follow-up is still recorded above so a later expand
	// reveals it without a fetch.
	parent, ok := e.topLevel.get(parentID)
	if !ok {
		return
	}
	if ev.ParentUpdate != nil {
		parent.FollowupCount = ev.ParentUpdate.FollowupCount
	} else if inserted {
		parent.FollowupCount++
	}
}

// applyUpdate replaces the stored fields of an existing question in place,
// keeping its container and position so updates never cause visual jumps.
// The server sends partial payloads for some updates (a parent's
// followup_count bump carries only id and count), so empty incoming fields
// preserve the stored values. Updates for unknown ids are dropped.
func (e *Engine) applyUpdate(in models.Question) {
	stored, ok := e.topLevel.get(in.ID)
	if !ok {
		stored, ok = e.followUps.get(in.ID)
	}
	if !ok {
		e.logger.Debug("update for unknown question", zap.String("id", in.ID.String()))
		return
	}
	if in.Content != "" {
		stored.Content = in.Content
	}
	if in.UserName != "" {
		stored.UserName = in.UserName
	}
	if in.AttendeeIdentifier != "" {
		stored.AttendeeIdentifier = in.AttendeeIdentifier
	}
	if in.LikeCount != 0 {
		stored.LikeCount = in.LikeCount
	}
	if in.FollowupCount != 0 {
		stored.FollowupCount = in.FollowupCount
	}
}

// MergeFollowUps merges a fetched page of a thread into the follow-up
// collection, deduplicated by id. Pages arrive newest-first and are
// appended behind any live-inserted entries, which are newer by
// construction, so overall order stays newest-first.
func (e *Engine) MergeFollowUps(parentID uuid.UUID, page []models.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range page {
		if q.ParentID == nil || *q.ParentID != parentID {
			continue
		}
		if e.followUps.insertBack(q) {
			e.byParent[parentID] = append(e.byParent[parentID], q.ID)
		}
	}
}

// TopLevel returns the reconciled top-level questions, newest-first.
func (e *Engine) TopLevel() []models.Question {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.topLevel.values()
}

// FollowUps returns the loaded follow-ups of a parent, newest-first.
func (e *Engine) FollowUps(parentID uuid.UUID) []models.Question {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := e.byParent[parentID]
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := e.followUps.get(id); ok {
			out = append(out, *q)
		}
	}
	return out
}

// Get returns a question by id from either container.
func (e *Engine) Get(id uuid.UUID) (models.Question, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if q, ok := e.topLevel.get(id); ok {
		return *q, true
	}
	if q, ok := e.followUps.get(id); ok {
		return *q, true
	}
	return models.Question{}, false
}

// LoadedFollowUpCount returns how many follow-ups of a parent are loaded
// locally. The thread loader compares it against the parent's
// followup_count, the authoritative signal for "is the thread complete".
func (e *Engine) LoadedFollowUpCount(parentID uuid.UUID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byParent[parentID])
}
