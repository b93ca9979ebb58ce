package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satindergrewal/codystudio/internal/task"
)

// --- Events websocket ---

func TestEventsStreamFiltersByJob(t *testing.T) {
	events := NewBroadcaster[task.Progress](EventBuffer)
	srv := httptest.NewServer(NewEventsHandler(zap.NewNop().Sugar(), events))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?job=j2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return events.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)

	events.Publish(task.Progress{TaskID: "j1", Percent: 10})
	events.Publish(task.Progress{TaskID: "j2", Kind: "master", Percent: 20, State: task.StateRunning})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got task.Progress
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "j2", got.TaskID)
	assert.Equal(t, 20, got.Percent)
	assert.Equal(t, task.StateRunning, got.State)
}

func TestEventsUnsubscribeOnClose(t *testing.T) {
	events := NewBroadcaster[task.Progress](EventBuffer)
	srv := httptest.NewServer(NewEventsHandler(zap.NewNop().Sugar(), events))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return events.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return events.ListenerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// --- WebRTC request validation ---

func TestWebRTCMethods(t *testing.T) {
	h := NewWebRTCHandler(zap.NewNop().Sugar(), NewBroadcaster[[]int16](PreviewBuffer))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/offer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offer", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader(`{"type":"offer"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, h.PeerCount())
}
