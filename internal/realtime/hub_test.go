package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	eventID := uuid.New()
	c1 := &Conn{ID: "c1", EventID: eventID, send: make(chan []byte, 4)}
	c2 := &Conn{ID: "c2", EventID: eventID, send: make(chan []byte, 4)}
	other := &Conn{ID: "c3", EventID: uuid.New(), send: make(chan []byte, 4)}

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)
	assert.Equal(t, 2, hub.AudienceCount(eventID))

	ev := models.LiveEvent{
		Type: models.EventQuestionLiked,
		Data: models.Question{ID: uuid.New(), EventID: eventID, LikeCount: 3},
	}
	hub.Broadcast(eventID, ev)

	for _, c := range []*Conn{c1, c2} {
		select {
		case payload := <-c.send:
			var got models.LiveEvent
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, models.EventQuestionLiked, got.Type)
			assert.Equal(t, ev.Data.ID, got.Data.ID)
		default:
			t.Fatalf("conn %s received nothing", c.ID)
		}
	}
	select {
	case <-other.send:
		t.Fatal("broadcast leaked into another event room")
	default:
	}

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.AudienceCount(eventID))
	hub.Unregister(c2)
	assert.Equal(t, 0, hub.AudienceCount(eventID))
}

func TestHubAudienceChangeHandler(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	eventID := uuid.New()

	var counts []int
	hub.SetAudienceChangeHandler(func(id uuid.UUID, count int) {
		assert.Equal(t, eventID, id)
		counts = append(counts, count)
	})

	hub.Register(&Conn{ID: "a", EventID: eventID, send: make(chan []byte, 1)})
	hub.Register(&Conn{ID: "b", EventID: eventID, send: make(chan []byte, 1)})

	assert.Equal(t, []int{1, 2}, counts)
}

func TestServeWsAnswersPingAndDeliversBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, nil)
	router := gin.New()
	router.GET("/api/v1/ws/events/:id", ServeWs(hub, zap.NewNop()))
	srv := httptest.NewServer(router)
	defer srv.Close()

	eventID := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/events/" + eventID.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.AudienceCount(eventID) == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))

	ev := models.LiveEvent{
		Type: models.EventNewQuestion,
		Data: models.Question{ID: uuid.New(), EventID: eventID, Content: "hello"},
	}
	hub.Broadcast(eventID, ev)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var got models.LiveEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.EventNewQuestion, got.Type)
	assert.Equal(t, "hello", got.Data.Content)
}
