package storetest

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/openteam-dev/openteam-go/shared/domain"
)

// hub fans persisted records out to live websocket subscribers, grouped
// by target key.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan domain.Message
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) add(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
}

func (h *hub) remove(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], sub)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

// broadcast hands the record to every live subscriber of its target.
// Slow subscribers are skipped rather than blocking the send path.
func (h *hub) broadcast(m domain.Message) {
	key := m.Target().Key()
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[key] {
		select {
		case sub.out <- m:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	target := domain.TargetContext{
		Channel:       chi.URLParam(r, "channel"),
		ParentMessage: r.URL.Query().Get("parent"),
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{conn: conn, out: make(chan domain.Message, 32)}
	key := target.Key()
	s.hub.add(key, sub)

	// Drain client frames so close handshakes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.hub.remove(key, sub)
		conn.Close()
	}()

	for {
		select {
		case m := <-sub.out:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
