package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satindergrewal/codystudio/internal/task"
)

const (
	// EventBuffer is how many progress events a websocket client may lag
	// behind before updates are dropped.
	EventBuffer = 256
	writeWait   = 5 * time.Second
	pingPeriod  = 30 * time.Second
)

// EventsHandler upgrades to a websocket and streams task progress as JSON.
// A "job" query parameter restricts the stream to one task.
type EventsHandler struct {
	log      *zap.SugaredLogger
	events   *Broadcaster[task.Progress]
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a websocket handler for events.
func NewEventsHandler(log *zap.SugaredLogger, events *Broadcaster[task.Progress]) *EventsHandler {
	return &EventsHandler{
		log:    log,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	job := r.URL.Query().Get("job")
	listener := h.events.Subscribe()
	defer h.events.Unsubscribe(listener)
	h.log.Debugw("events client connected", "job", job, "clients", h.events.ListenerCount())

	// the read loop only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case p := <-listener.C:
			if job != "" && p.TaskID != job {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		}
	}
}
