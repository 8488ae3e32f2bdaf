package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerhub/internal/models"
)

// serveHub registers every connection under userID.
func serveHub(t *testing.T, hub *Hub, userID int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := hub.Accept(w, r)
		if err != nil {
			return
		}
		hub.Register(userID, client)
		defer hub.Unregister(userID, client)
		_ = client.Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PublishReachesRecipientOnly(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := serveHub(t, hub, 7)
	conn := dial(t, srv, "")

	require.Eventually(t, func() bool { return hub.Online(7) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(&models.Notification{ID: 99, UserID: 8, Message: "not yours"})
	hub.Publish(&models.Notification{ID: 1, UserID: 7, PostID: 3, Message: "jimin sent a partnership request for 'Coffee'"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string              `json:"type"`
		Data models.Notification `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNotification, ev.Type)
	assert.EqualValues(t, 1, ev.Data.ID)
	assert.EqualValues(t, 3, ev.Data.PostID)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := serveHub(t, hub, 7)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Online(7) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	assert.Eventually(t, func() bool { return hub.Online(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseSendsGoingAway(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := serveHub(t, hub, 7)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Online(7) == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Online(7))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"https://partnerhub.kr"}, nil)
	srv := serveHub(t, hub, 7)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"),
		http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, "https://partnerhub.kr")
	assert.Eventually(t, func() bool { return hub.Online(7) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_PublishNilAndNoListeners(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.NotPanics(t, func() {
		hub.Publish(nil)
		hub.Publish(&models.Notification{ID: 1, UserID: 42})
	})
}

func TestClient_FullBufferDrops(t *testing.T) {
	c := newClient(nil)
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.enqueue(Event{Type: EventNotification}))
	}
	assert.False(t, c.enqueue(Event{Type: EventNotification}))
}
