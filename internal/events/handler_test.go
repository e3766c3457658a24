package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/askwave/liveqa/internal/models"
)

type fakeStore struct {
	byID   map[uuid.UUID]*models.Event
	byCode map[string]*models.Event
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (*models.Event, error) {
	e, ok := f.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func newTestRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store)
	r := gin.New()
	r.GET("/api/v1/events/code/:code", h.GetByCode)
	r.GET("/api/v1/events/:id", h.GetByID)
	return r
}

func TestGetByCode(t *testing.T) {
	event := &models.Event{ID: uuid.New(), Name: "town hall", Code: "TOWN42"}
	router := newTestRouter(&fakeStore{byCode: map[string]*models.Event{"TOWN42": event}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/code/TOWN42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), event.ID.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/code/NOPE", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByID(t *testing.T) {
	event := &models.Event{ID: uuid.New(), Name: "town hall", Code: "TOWN42"}
	router := newTestRouter(&fakeStore{byID: map[uuid.UUID]*models.Event{event.ID: event}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+event.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/"+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
