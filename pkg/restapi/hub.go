package restapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

type wsEvent struct {
	Event string `json:"event"`
}

// Hub fans out series_modified/series_deleted events to WebSocket
// clients subscribed to a given series. It implements timeseries.Observer
// directly: the manager calls SeriesModified/SeriesDeleted while still
// holding the series' write lock, so both methods must never block.
type Hub struct {
	mgr *timeseries.Manager

	mu   sync.Mutex
	subs map[string]map[*client]struct{}
}

// NewHub builds a Hub bound to mgr, used to register/unregister itself
// as each series' observer set gains or loses its last subscriber.
func NewHub(mgr *timeseries.Manager) *Hub {
	return &Hub{mgr: mgr, subs: make(map[string]map[*client]struct{})}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// SeriesModified implements timeseries.Observer.
func (h *Hub) SeriesModified(name string) { h.broadcast(name, wsEvent{Event: "modified"}) }

// SeriesDeleted implements timeseries.Observer.
func (h *Hub) SeriesDeleted(name string) { h.broadcast(name, wsEvent{Event: "deleted"}) }

func (h *Hub) broadcast(name string, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[name] {
		select {
		case c.send <- data:
		default:
			log.Printf("restapi: dropping websocket event for slow client on %s", name)
		}
	}
}

func (h *Hub) subscribe(name string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[name] == nil {
		h.subs[name] = make(map[*client]struct{})
		h.mgr.RegisterObserver(name, h)
	}
	h.subs[name][c] = struct{}{}
}

func (h *Hub) unsubscribe(name string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[name], c)
	if len(h.subs[name]) == 0 {
		delete(h.subs, name)
		h.mgr.UnregisterObserver(name, h)
	}
}

// HandleSeriesWS upgrades to a WebSocket connection and streams a JSON
// {"event": "modified"|"deleted"} line for every commit to the named
// series, a realtime analogue of wait_modification exposed to external
// HTTP collaborators.
func (h *Hub) HandleSeriesWS(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("restapi: websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.subscribe(name, c)
	defer h.unsubscribe(name, c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(config.WSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		}
	}
}
