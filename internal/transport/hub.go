package transport

import (
	"sync"

	"github.com/pacarena/server/internal/room"
)

// hub fans a single room's OutboundEvent stream out to every connection
// currently watching that room, generalizing clairegregg's global
// clients-map-plus-broadcast pattern (chunk_server/websocket/handler.go)
// from one process-wide room to one hub per room.
type hub struct {
	mu    sync.Mutex
	conns map[string]chan room.OutboundEvent
}

func newHub(r *room.GameRoom) *hub {
	h := &hub{conns: map[string]chan room.OutboundEvent{}}
	go h.run(r)
	return h
}

func (h *hub) run(r *room.GameRoom) {
	for {
		select {
		case <-r.Done():
			h.closeAll()
			return
		case ev, ok := <-r.Events():
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *hub) broadcast(ev room.OutboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.ConnectionID != "" {
		if ch, ok := h.conns[ev.ConnectionID]; ok {
			nonBlockingSend(ch, ev)
		}
		return
	}
	for _, ch := range h.conns {
		nonBlockingSend(ch, ev)
	}
}

func nonBlockingSend(ch chan room.OutboundEvent, ev room.OutboundEvent) {
	select {
	case ch <- ev:
	default:
	}
}

// register subscribes a connection to this hub's broadcasts and returns
// the channel it should read from.
func (h *hub) register(connectionID string) <-chan room.OutboundEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan room.OutboundEvent, 64)
	h.conns[connectionID] = ch
	return ch
}

func (h *hub) unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[connectionID]; ok {
		delete(h.conns, connectionID)
		close(ch)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.conns {
		delete(h.conns, id)
		close(ch)
	}
}

// hubRegistry lazily creates and caches one hub per room code.
type hubRegistry struct {
	mu   sync.Mutex
	hubs map[string]*hub
}

func newHubRegistry() *hubRegistry {
	return &hubRegistry{hubs: map[string]*hub{}}
}

func (hr *hubRegistry) forRoom(r *room.GameRoom) *hub {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	code := r.Code()
	if h, ok := hr.hubs[code]; ok {
		return h
	}
	h := newHub(r)
	hr.hubs[code] = h
	go func() {
		<-r.Done()
		hr.mu.Lock()
		delete(hr.hubs, code)
		hr.mu.Unlock()
	}()
	return h
}
