package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversOnlyToDuelSubscribers(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("duel"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?duel=d1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("d1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: TypeRoundResolved, DuelID: "other"})
	hub.Publish(Event{Type: TypeRoundResolved, DuelID: "d1", RoundNumber: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "d1", ev.DuelID)
	assert.Equal(t, 2, ev.RoundNumber)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("d1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(Event{Type: TypeDuelUpdated})
}
