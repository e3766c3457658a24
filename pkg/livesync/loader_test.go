package livesync

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askwave/liveqa/internal/models"
)

// fakeRepository records calls and serves canned thread pages.
type fakeRepository struct {
	mu          sync.Mutex
	listCalls   int
	createCalls int
	likeCalls   int
	pages       [][]models.Question // served in order; empty page afterwards
	lastOpts    ListOptions
	err         error
}

func (f *fakeRepository) ListQuestions(_ context.Context, _ uuid.UUID, opts ListOptions) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeRepository) CreateQuestion(context.Context, uuid.UUID, CreateParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.err
}

func (f *fakeRepository) LikeQuestion(context.Context, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCalls++
	return f.err
}

func (f *fakeRepository) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func TestExpandFetchesMissingFollowUps(t *testing.T) {
	e := NewEngine(nil)
	parent := newQuestion("parent", 0, 2)
	e.Seed([]models.Question{parent})

	fu1 := newFollowUp(parent.ID, "first")
	fu2 := newFollowUp(parent.ID, "second")
	repo := &fakeRepository{pages: [][]models.Question{{fu1, fu2}}}
	loader := NewThreadLoader(e, repo, parent.EventID)

	require.NoError(t, loader.Expand(context.Background(), parent.ID))

	assert.Equal(t, 1, repo.calls())
	assert.Len(t, e.FollowUps(parent.ID), 2)
	assert.True(t, loader.Expanded(parent.ID))
	require.NotNil(t, repo.lastOpts.ParentID)
	assert.Equal(t, parent.ID, *repo.lastOpts.ParentID)
}

func TestExpandFullyLoadedThreadFetchesNothing(t *testing.T) {
	e := NewEngine(nil)
	parent := newQuestion("parent", 0, 1)
	e.Seed([]models.Question{parent})
	e.Apply(models.LiveEvent{Type: models.EventNewQuestion, Data: newFollowUp(parent.ID, "already here")})

	repo := &fakeRepository{}
	loader := NewThreadLoader(e, repo, parent.EventID)

	require.NoError(t, loader.Expand(context.Background(), parent.ID))
	assert.Equal(t, 0, repo.calls())
	assert.True(t, loader.Expanded(parent.ID))
}

func TestReexpandIssuesNoFetch(t *testing.T) {
	e := NewEngine(nil)
	parent := newQuestion("parent", 0, 1)
	e.Seed([]models.Question{parent})

	repo := &fakeRepository{pages: [][]models.Question{{newFollowUp(parent.ID, "reply")}}}
	loader := NewThreadLoader(e, repo, parent.EventID)

	require.NoError(t, loader.Expand(context.Background(), parent.ID))
	require.NoError(t, loader.Expand(context.Background(), parent.ID))

	assert.Equal(t, 1, repo.calls())
}

func TestCollapseKeepsLoadedFollowUps(t *testing.T) {
	e := NewEngine(nil)
	parent := newQuestion("parent", 0, 1)
	e.Seed([]models.Question{parent})

	repo := &fakeRepository{pages: [][]models.Question{{newFollowUp(parent.ID, "reply")}}}
	loader := NewThreadLoader(e, repo, parent.EventID)

	require.NoError(t, loader.Expand(context.Background(), parent.ID))
	loader.Collapse(parent.ID)

	assert.False(t, loader.Expanded(parent.ID))
	assert.Len(t, e.FollowUps(parent.ID), 1)

	// Re-opening costs nothing.
	require.NoError(t, loader.Expand(context.Background(), parent.ID))
	assert.Equal(t, 1, repo.calls())
}

func TestExpandUnknownParentIsNoop(t *testing.T) {
	e := NewEngine(nil)
	repo := &fakeRepository{}
	loader := NewThreadLoader(e, repo, uuid.New())

	require.NoError(t, loader.Expand(context.Background(), uuid.New()))
	assert.Equal(t, 0, repo.calls())
}

func TestExpandStopsOnEmptyPage(t *testing.T) {
	e := NewEngine(nil)
	// Count claims more follow-ups than the server can produce; the loader
	// must not spin.
	parent := newQuestion("parent", 0, 5)
	e.Seed([]models.Question{parent})

	repo := &fakeRepository{pages: [][]models.Question{{newFollowUp(parent.ID, "only one")}}}
	loader := NewThreadLoader(e, repo, parent.EventID)

	require.NoError(t, loader.Expand(context.Background(), parent.ID))
	assert.Equal(t, 2, repo.calls())
	assert.Len(t, e.FollowUps(parent.ID), 1)
}

func TestExpandSurfacesRepositoryError(t *testing.T) {
	e := NewEngine(nil)
	parent := newQuestion("parent", 0, 1)
	e.Seed([]models.Question{parent})

	wantErr := &RepositoryError{Kind: ErrKindStatus, Op: "list questions", Status: 500}
	repo := &fakeRepository{err: wantErr}
	loader := NewThreadLoader(e, repo, parent.EventID)

	err := loader.Expand(context.Background(), parent.ID)
	assert.ErrorIs(t, err, wantErr)
}
