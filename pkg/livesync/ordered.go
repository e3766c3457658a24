package livesync

import (
	"github.com/google/uuid"

	"github.com/askwave/liveqa/internal/models"
)

// questionList is an id-keyed container that preserves insertion order.
// Collections are kept newest-first: live events go to the front, older
// pages fetched on demand go to the back.
type questionList struct {
	order []uuid.UUID
	byID  map[uuid.UUID]*models.Question
}

func newQuestionList() *questionList {
	return &questionList{byID: make(map[uuid.UUID]*models.Question)}
}

// insertFront adds q at the front. Returns false without modifying anything
// when an entry with the same id already exists.
func (l *questionList) insertFront(q models.Question) bool {
	if _, ok := l.byID[q.ID]; ok {
		return false
	}
	l.order = append([]uuid.UUID{q.ID}, l.order...)
	l.byID[q.ID] = &q
	return true
}

// insertBack adds q at the back, deduplicated by id.
func (l *questionList) insertBack(q models.Question) bool {
	if _, ok := l.byID[q.ID]; ok {
		return false
	}
	l.order = append(l.order, q.ID)
	l.byID[q.ID] = &q
	return true
}

func (l *questionList) get(id uuid.UUID) (*models.Question, bool) {
	q, ok := l.byID[id]
	return q, ok
}

// replaceAll discards the current contents and stores qs in the given order.
func (l *questionList) replaceAll(qs []models.Question) {
	l.order = l.order[:0]
	l.byID = make(map[uuid.UUID]*models.Question, len(qs))
	for i := range qs {
		q := qs[i]
		if _, ok := l.byID[q.ID]; ok {
			continue
		}
		l.order = append(l.order, q.ID)
		l.byID[q.ID] = &q
	}
}

func (l *questionList) values() []models.Question {
	out := make([]models.Question, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.byID[id])
	}
	return out
}
