package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/finchsocial/finch/internal/domain"
)

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Close()

	ts := httptest.NewServer(hub)
	defer ts.Close()

	first := dial(t, ts)
	second := dial(t, ts)

	// Wait for both registrations before broadcasting.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 2
	}, time.Second, 5*time.Millisecond)

	hub.Publish(domain.Event{
		Type:    domain.EventLikeToggled,
		ActorID: "alice",
		PostID:  "p1",
		Added:   true,
	})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var event domain.Event
		require.NoError(t, json.Unmarshal(payload, &event))
		require.Equal(t, domain.EventLikeToggled, event.Type)
		require.Equal(t, "p1", event.PostID)
		require.True(t, event.Added)
	}
}

func TestDisconnectedSubscriberIsDropped(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Close()

	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dial(t, ts)
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns) == 0
	}, time.Second, 5*time.Millisecond)
}
