package livesync

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ThreadLoader decides when a follow-up thread needs fetching. A thread is
// complete when the number of locally loaded follow-ups reaches the
// parent's followup_count, so expanding a complete thread costs nothing.
type ThreadLoader struct {
	engine  *Engine
	repo    Repository
	eventID uuid.UUID
	perPage int

	mu       sync.Mutex
	expanded map[uuid.UUID]bool
}

// NewThreadLoader creates a loader bound to one event view.
func NewThreadLoader(engine *Engine, repo Repository, eventID uuid.UUID) *ThreadLoader {
	return &ThreadLoader{
		engine:   engine,
		repo:     repo,
		eventID:  eventID,
		perPage:  50,
		expanded: make(map[uuid.UUID]bool),
	}
}

// Expand opens a parent's thread, fetching pages only while fewer follow-ups
// are loaded than the parent's followup_count. Re-expanding a fully loaded
// thread issues zero fetches.
func (l *ThreadLoader) Expand(ctx context.Context, parentID uuid.UUID) error {
	parent, ok := l.engine.Get(parentID)
	if !ok {
		// Unknown parent: nothing to load, still toggle view state.
		l.setExpanded(parentID, true)
		return nil
	}

	page := 1
	for l.engine.LoadedFollowUpCount(parentID) < parent.FollowupCount {
		qs, err := l.repo.ListQuestions(ctx, l.eventID, ListOptions{
			ParentID: &parentID,
			SortBy:   SortByCreatedAt,
			Order:    OrderDesc,
			Page:     page,
			PerPage:  l.perPage,
		})
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			break
		}
		l.engine.MergeFollowUps(parentID, qs)
		page++
	}

	l.setExpanded(parentID, true)
	return nil
}

// Collapse hides a thread. Loaded follow-ups are kept so re-expanding never
// refetches.
func (l *ThreadLoader) Collapse(parentID uuid.UUID) {
	l.setExpanded(parentID, false)
}

// Expanded reports whether a thread is currently open in the view.
func (l *ThreadLoader) Expanded(parentID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expanded[parentID]
}

func (l *ThreadLoader) setExpanded(parentID uuid.UUID, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expanded[parentID] = v
}
