package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"grila/internal/api"
	"grila/internal/grading"
	"grila/internal/logging"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// eventHub broadcasts grading notifications to websocket clients. A client
// that cannot keep up is disconnected rather than slowing the grading jobs.
type eventHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	active  atomic.Int64
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger: logging.NewComponentLogger(logger, "events"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now:     time.Now,
		clients: make(map[*eventClient]struct{}),
	}
}

func (h *eventHub) JobStarted(string, grading.Submission) {
	h.active.Add(1)
}

func (h *eventHub) JobFinished(batchID string, result grading.JobResult, _ time.Duration) {
	h.active.Add(-1)
	evt := api.Event{
		Type:      api.EventJobFinished,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		BatchID:   batchID,
	}
	switch {
	case result.Success != nil:
		evt.Index = result.Success.Index
		evt.FileName = result.Success.FileName
		evt.SavedID = result.Success.ID
		if result.Success.Outcome != nil {
			evt.Score = result.Success.Outcome.Score()
		}
	case result.Failure != nil:
		evt.Index = result.Failure.Index
		evt.FileName = result.Failure.FileName
		evt.Error = result.Failure.Error
		evt.Kind = result.Failure.Kind
	}
	h.broadcast(evt)
}

func (h *eventHub) BatchFinished(resp *grading.BatchResponse) {
	if resp == nil {
		return
	}
	summary := api.FromBatchSummary(resp.Summary)
	h.broadcast(api.Event{
		Type:      api.EventBatchFinished,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		BatchID:   resp.BatchID,
		Summary:   &summary,
	})
}

func (h *eventHub) activeJobs() int64 {
	return h.active.Load()
}

func (h *eventHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *eventHub) broadcast(evt api.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("failed to encode event", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Debug("dropping slow event client")
			h.removeLocked(client)
		}
	}
}

// serve upgrades the request and blocks until the client goes away.
func (h *eventHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &eventClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event client connected", logging.Int("clients", total))

	go h.writePump(client)
	h.readPump(client)
}

func (h *eventHub) readPump(client *eventClient) {
	defer h.remove(client)
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *eventHub) writePump(client *eventClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

func (h *eventHub) remove(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *eventHub) removeLocked(client *eventClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.once.Do(func() { close(client.send) })
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}
