package livesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askwave/liveqa/internal/models"
)

func TestStreamURL(t *testing.T) {
	eventID := uuid.MustParse("6f1c2b34-0e65-4f7a-9f3e-2a3b4c5d6e7f")
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{name: "http", base: "http://localhost:8080", want: "ws://localhost:8080/api/v1/ws/events/" + eventID.String()},
		{name: "https", base: "https://qa.example.com", want: "wss://qa.example.com/api/v1/ws/events/" + eventID.String()},
		{name: "ws passthrough", base: "ws://localhost:8080", want: "ws://localhost:8080/api/v1/ws/events/" + eventID.String()},
		{name: "bad scheme", base: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := streamURL(tt.base, eventID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionOpenSeedsAndAppliesPushedEvents(t *testing.T) {
	eventID := uuid.New()
	seeded := newQuestion("seeded question", 0, 0)
	seeded.EventID = eventID
	pushed := newQuestion("pushed later", 0, 0)
	pushed.EventID = eventID

	send := make(chan models.LiveEvent, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events/"+eventID.String()+"/questions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(listEnvelope{Data: []models.Question{seeded}, Count: 1})
	})
	mux.HandleFunc("/api/v1/ws/events/"+eventID.String(), func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go holdOpen(conn)
		for ev := range send {
			if err := conn.WriteMessage(websocket.TextMessage, mustMarshal(t, ev)); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(send)

	changes := make(chan models.LiveEvent, 4)
	session, err := NewSession(srv.URL, eventID,
		WithOnChange(func(ev models.LiveEvent) { changes <- ev }))
	require.NoError(t, err)

	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	top := session.TopLevel()
	require.Len(t, top, 1)
	assert.Equal(t, seeded.ID, top[0].ID)
	assert.Equal(t, StateOpen, session.State())

	send <- models.LiveEvent{Type: models.EventNewQuestion, Data: pushed}
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("pushed event never applied")
	}

	top = session.TopLevel()
	require.Len(t, top, 2)
	assert.Equal(t, pushed.ID, top[0].ID)
	assert.Equal(t, seeded.ID, top[1].ID)
}

func TestSessionMutationsAreFireAndForget(t *testing.T) {
	eventID := uuid.New()
	repo := &fakeRepository{}
	session, err := NewSession("http://localhost:0", eventID, WithRepository(repo))
	require.NoError(t, err)

	require.NoError(t, session.Ask(context.Background(), "a question", "dana", false))
	require.NoError(t, session.FollowUp(context.Background(), uuid.New(), "a follow-up", "dana", true))
	require.NoError(t, session.Like(context.Background(), uuid.New()))

	// Nothing materializes locally until the server pushes it back.
	assert.Empty(t, session.TopLevel())
	assert.Equal(t, 2, repo.createCalls)
	assert.Equal(t, 1, repo.likeCalls)
}

func TestSessionClosedOperationsFail(t *testing.T) {
	session, err := NewSession("http://localhost:0", uuid.New(), WithRepository(&fakeRepository{}))
	require.NoError(t, err)
	session.Close()

	assert.ErrorIs(t, session.Open(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, session.Ask(context.Background(), "x", "", true), ErrSessionClosed)
	assert.ErrorIs(t, session.Like(context.Background(), uuid.New()), ErrSessionClosed)
	assert.ErrorIs(t, session.Expand(context.Background(), uuid.New()), ErrSessionClosed)
}

func TestSessionOpenSurfacesRepositoryError(t *testing.T) {
	eventID := uuid.New()
	wantErr := &RepositoryError{Kind: ErrKindNetwork, Op: "list questions"}
	session, err := NewSession("http://localhost:0", eventID, WithRepository(&fakeRepository{err: wantErr}))
	require.NoError(t, err)

	assert.ErrorIs(t, session.Open(context.Background()), wantErr)
}

