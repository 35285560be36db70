package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records refresh requests and serves fixed snapshots
type fakeBackend struct {
	snapshots []Event
	err       error

	mu        sync.Mutex
	refreshed []string
}

func (b *fakeBackend) Snapshots() []Event {
	return b.snapshots
}

func (b *fakeBackend) Refresh(ctx context.Context, resource string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshed = append(b.refreshed, resource)
	return b.err
}

func (b *fakeBackend) Refreshed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.refreshed...)
}

// connect serves one upgraded connection through a real Client and dials it
func connect(t *testing.T, hub *Hub, backend Backend) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, backend)
		client.ReplaySnapshots()
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestClient_ReplaysSnapshotsOnConnect(t *testing.T) {
	backend := &fakeBackend{snapshots: []Event{
		Snapshot(EntityTypeCategories, "categories", []string{"Food"}),
		Snapshot(EntityTypeIncomes, "incomes", []string{}),
	}}
	conn := connect(t, NewHub(), backend)

	assert.Equal(t, "categories", readEvent(t, conn).Resource)
	assert.Equal(t, "incomes", readEvent(t, conn).Resource)
}

func TestClient_RefreshCommandReachesBackend(t *testing.T) {
	backend := &fakeBackend{}
	conn := connect(t, NewHub(), backend)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"refresh","resource":"dashboard"}`)))

	require.Eventually(t, func() bool {
		return len(backend.Refreshed()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"dashboard"}, backend.Refreshed())
}

func TestClient_BadCommandIsRejected(t *testing.T) {
	backend := &fakeBackend{}
	conn := connect(t, NewHub(), backend)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"delete","resource":"incomes"}`)))

	evt := readEvent(t, conn)
	assert.Equal(t, "command.rejected", evt.Type)
	assert.Empty(t, backend.Refreshed())
}

func TestClient_RefreshErrorIsRejected(t *testing.T) {
	backend := &fakeBackend{err: errors.New(`unknown resource "transfers"`)}
	conn := connect(t, NewHub(), backend)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"refresh","resource":"transfers"}`)))

	evt := readEvent(t, conn)
	assert.Equal(t, "command.rejected", evt.Type)
	assert.Equal(t, "transfers", evt.Resource)
}

func TestClient_SessionExpiredIsLastEvent(t *testing.T) {
	hub := NewHub()
	conn := connect(t, hub, nil)

	hub.Publish(SessionExpired("/login"))

	assert.Equal(t, "session.expired", readEvent(t, conn).Type)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, hub.ClientCount())
}
