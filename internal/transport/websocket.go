package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/registry"
	"github.com/pacarena/server/internal/room"
)

// writeDeadline mirrors clairegregg's chunk_server, which sets a fresh
// write deadline before every WriteMessage call rather than leaving one
// stuck indefinitely.
const writeDeadline = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server wires the RoomRegistry to HTTP: REST endpoints for out-of-band
// room resolution and a single /ws endpoint carrying the full
// {type, payload} envelope protocol (spec.md §6).
type Server struct {
	reg    *registry.Registry
	hubs   *hubRegistry
	logger *log.Logger
}

// NewServer constructs a transport Server over an existing registry.
func NewServer(reg *registry.Registry, logger *log.Logger) *Server {
	return &Server{reg: reg, hubs: newHubRegistry(), logger: logger}
}

// HandleWebSocket upgrades the connection and runs its read loop until the
// client disconnects, generalizing clairegregg's WSHandler
// (chunk_server/websocket/handler.go) from one global room to
// RoomRegistry-routed rooms, with the write side split into its own
// per-connection goroutine draining a hub subscription instead of writing
// straight from the read loop.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}

	connectionID := uuid.NewString()
	c := &connHandler{
		id:     connectionID,
		conn:   conn,
		reg:    s.reg,
		hubs:   s.hubs,
		logger: s.logger,
		send:   make(chan Envelope, 64),
	}
	c.run()
}

type connHandler struct {
	id     string
	conn   *websocket.Conn
	reg    *registry.Registry
	hubs   *hubRegistry
	logger *log.Logger

	send chan Envelope
	done chan struct{}

	subscribed bool
	unsubFn    func()
}

func (c *connHandler) run() {
	c.done = make(chan struct{})
	go c.writePump()
	defer c.teardown()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.dispatch(env)
	}
}

func (c *connHandler) teardown() {
	close(c.done)
	if c.unsubFn != nil {
		c.unsubFn()
	}
	c.reg.HandleDisconnect(c.id)
	c.conn.Close()
}

func (c *connHandler) writePump() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(env); err != nil {
				if c.logger != nil {
					c.logger.Warn("websocket write failed", "conn", c.id, "err", err)
				}
				return
			}
		}
	}
}

func (c *connHandler) dispatch(env Envelope) {
	switch env.Type {
	case "createRoom":
		c.handleCreateRoom()
	case "joinRoom":
		c.handleJoinRoom(env.Payload)
	case "toggleReady":
		c.handleRoomAction(env.Payload, func(rm *room.GameRoom) error { return rm.ToggleReady(c.id) })
	case "startGame":
		c.handleRoomAction(env.Payload, func(rm *room.GameRoom) error { return rm.Start() })
	case "restartGame":
		c.handleRoomAction(env.Payload, func(rm *room.GameRoom) error { return rm.Restart() })
	case "playerInput":
		c.handlePlayerInput(env.Payload)
	case "requestGameState":
		c.handleRequestGameState(env.Payload)
	default:
		c.sendError("unknownType", "unrecognized message type: "+env.Type)
	}
}

func (c *connHandler) handleCreateRoom() {
	rm, err := c.reg.CreateRoom()
	if err != nil {
		c.sendJSON("createRoom", createRoomResultPayload{Ok: false, Error: err.Error()})
		return
	}
	c.sendJSON("createRoom", createRoomResultPayload{Ok: true, RoomCode: rm.Code()})
}

func (c *connHandler) handleJoinRoom(raw json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError("badRequest", "invalid joinRoom payload")
		return
	}

	ghost := room.GhostIdentity(p.GhostIdentity)
	if err := c.reg.JoinRoom(p.RoomCode, c.id, p.Username, ghost); err != nil {
		c.sendJSON("joinRoom", ackPayload{Ok: false, Error: err.Error()})
		return
	}
	c.sendJSON("joinRoom", ackPayload{Ok: true})

	rm, _, ok := c.reg.RoomForConnection(c.id)
	if !ok {
		return
	}
	c.subscribe(rm)
	c.sendJSON(room.EventGameState, rm.CurrentState())
}

func (c *connHandler) handleRoomAction(raw json.RawMessage, action func(*room.GameRoom) error) {
	var p roomCodePayload
	_ = json.Unmarshal(raw, &p)

	rm, ok := c.resolveRoom(p.RoomCode)
	if !ok {
		c.sendError("roomNotFound", "room not found")
		return
	}
	if err := action(rm); err != nil {
		c.sendError("actionFailed", err.Error())
	}
}

func (c *connHandler) handlePlayerInput(raw json.RawMessage) {
	var p playerInputPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError("badRequest", "invalid playerInput payload")
		return
	}
	dir, err := maze.ParseDirection(p.Direction)
	if err != nil {
		c.sendError("badRequest", err.Error())
		return
	}
	rm, ok := c.resolveRoom(p.RoomCode)
	if !ok {
		c.sendError("roomNotFound", "room not found")
		return
	}
	if err := rm.SubmitInput(c.id, dir); err != nil {
		c.sendError("actionFailed", err.Error())
	}
}

func (c *connHandler) handleRequestGameState(raw json.RawMessage) {
	var p roomCodePayload
	_ = json.Unmarshal(raw, &p)
	rm, ok := c.resolveRoom(p.RoomCode)
	if !ok {
		c.sendError("roomNotFound", "room not found")
		return
	}
	c.sendJSON(room.EventGameState, rm.CurrentState())
}

// resolveRoom prefers an explicit room code but falls back to whichever
// room this connection already joined, so clients need not repeat the
// code on every message.
func (c *connHandler) resolveRoom(code string) (*room.GameRoom, bool) {
	if code != "" {
		return c.reg.LookupRoom(code)
	}
	rm, _, ok := c.reg.RoomForConnection(c.id)
	return rm, ok
}

func (c *connHandler) subscribe(rm *room.GameRoom) {
	if c.subscribed {
		return
	}
	c.subscribed = true
	h := c.hubs.forRoom(rm)
	ch := h.register(c.id)
	c.unsubFn = func() { h.unregister(c.id) }

	go func() {
		for ev := range ch {
			c.sendJSON(ev.Type, ev.Payload)
		}
	}()
}

func (c *connHandler) sendJSON(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to marshal outbound payload", "type", msgType, "err", err)
		}
		return
	}
	select {
	case c.send <- Envelope{Type: msgType, Payload: data}:
	case <-c.done:
	default:
		if c.logger != nil {
			c.logger.Warn("dropped outbound frame, send buffer full", "conn", c.id, "type", msgType)
		}
	}
}

func (c *connHandler) sendError(code, message string) {
	c.sendJSON("error", ErrorPayload{Code: code, Message: message})
}
