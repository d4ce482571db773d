// Package registry owns cross-room bookkeeping: room creation, join
// routing, the player-to-room index, room-code allocation, and the 1-hour
// absolute TTL teardown (spec.md §4.7).
package registry

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pacarena/server/internal/brain"
	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/room"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 4
	roomTTL      = time.Hour
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// DirectoryPublisher is the hook a registry uses to announce room
// lifecycle events to the optional shared directory (spec.md §4.7).
// Publish returns no error: failures are logged by the implementation.
// Publish is called synchronously on the registry caller's goroutine; the
// Kafka and sqlite implementations finish their send or write before
// returning.
type DirectoryPublisher interface {
	Publish(event DirectoryEvent)
}

// DirectoryReader answers "is this room code known to any instance" from
// the local eventually-consistent replica (spec.md §4.7a). Only *Directory
// implements it: a KafkaAnnouncer forwards other instances' announcements
// into a Directory rather than answering reads itself, so callers read the
// shared view through this interface instead of through whatever
// DirectoryPublisher happens to be in use.
type DirectoryReader interface {
	Lookup(roomCode string) (instanceID string, playerCount int, ok bool)
}

// DirectoryEvent is one lifecycle announcement for a room.
type DirectoryEvent struct {
	RoomCode    string    `json:"roomCode"`
	Kind        string    `json:"kind"` // "created", "updated", "closed"
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type entry struct {
	room      *room.GameRoom
	createdAt time.Time
	ttlTimer  *time.Timer
}

// Registry owns every active room on this instance and the
// connection-id-to-room-code index used to route inbound messages and
// disconnects.
type Registry struct {
	maze            *maze.Maze
	cfg             room.Config
	tabular         *brain.TabularPolicy
	useTabular      bool
	directory       DirectoryPublisher
	directoryReader DirectoryReader
	logger          *log.Logger

	// OnRoomCreated is invoked synchronously with every newly created
	// room, before it is returned to the caller, so an owner can attach
	// hooks like GameRoom.OnMatchComplete without the registry needing to
	// know about statsink or any other downstream consumer.
	OnRoomCreated func(*room.GameRoom)

	mu           sync.Mutex
	rooms        map[string]*entry
	connToRoom   map[string]string
}

// New constructs an empty registry sharing one maze and one (possibly
// nil) tabular policy across every room it creates. reader is the shared
// directory replica LookupDirectory falls back to; pass nil when no
// directory is configured.
func New(m *maze.Maze, cfg room.Config, tabular *brain.TabularPolicy, useTabular bool, directory DirectoryPublisher, reader DirectoryReader, logger *log.Logger) *Registry {
	return &Registry{
		maze:            m,
		cfg:             cfg,
		tabular:         tabular,
		useTabular:      useTabular,
		directory:       directory,
		directoryReader: reader,
		logger:          logger,
		rooms:           map[string]*entry{},
		connToRoom:      map[string]string{},
	}
}

// CreateRoom allocates a unique 4-character code and an unstarted room
// (spec.md §4.7 "createRoom"). Directory publish failures are logged and
// never fail room creation.
func (reg *Registry) CreateRoom() (*room.GameRoom, error) {
	reg.mu.Lock()
	code, err := reg.freeCodeLocked()
	if err != nil {
		reg.mu.Unlock()
		return nil, err
	}

	controller := brain.NewPacmanController(reg.cfg.BrainDepth, reg.tabular, reg.useTabular)
	r := room.New(code, reg.maze, reg.cfg, controller, reg.componentLogger(code))
	r.OnTerminal = reg.teardown

	ttl := time.AfterFunc(roomTTL, func() { reg.forceTeardown(code) })
	reg.rooms[code] = &entry{room: r, createdAt: time.Now(), ttlTimer: ttl}
	reg.mu.Unlock()

	if reg.OnRoomCreated != nil {
		reg.OnRoomCreated(r)
	}

	reg.publish(code, "created", 0)
	return r, nil
}

func (reg *Registry) freeCodeLocked() (string, error) {
	const maxAttempts = 64
	for i := 0; i < maxAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("registry: could not allocate a free room code")
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// JoinRoom looks up a room by code and adds a player to it (spec.md §4.7
// "joinRoom"). On success the connection is indexed for HandleDisconnect.
func (reg *Registry) JoinRoom(code, connectionID, name string, ghost room.GhostIdentity) error {
	reg.mu.Lock()
	e, ok := reg.rooms[code]
	reg.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}

	if err := e.room.AddPlayer(connectionID, name, ghost); err != nil {
		return err
	}

	reg.mu.Lock()
	reg.connToRoom[connectionID] = code
	playerCount := len(reg.rooms[code].room.CurrentState().Players)
	reg.mu.Unlock()

	reg.publish(code, "updated", playerCount)
	return nil
}

// LookupRoom resolves a room by its code.
func (reg *Registry) LookupRoom(code string) (*room.GameRoom, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	e, ok := reg.rooms[code]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// LookupDirectory resolves a room by its code across every instance
// (spec.md §4.7a): a local hit returns the room itself; a miss falls back
// to the shared directory replica, which can only report which instance
// currently owns the code, not hand back a room to join directly.
func (reg *Registry) LookupDirectory(code string) (r *room.GameRoom, remoteInstanceID string, found bool) {
	if rm, ok := reg.LookupRoom(code); ok {
		return rm, "", true
	}
	if reg.directoryReader == nil {
		return nil, "", false
	}
	instanceID, _, ok := reg.directoryReader.Lookup(code)
	if !ok {
		return nil, "", false
	}
	return nil, instanceID, true
}

// RoomForConnection resolves the room a connection is currently in.
func (reg *Registry) RoomForConnection(connectionID string) (*room.GameRoom, string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	code, ok := reg.connToRoom[connectionID]
	if !ok {
		return nil, "", false
	}
	e, ok := reg.rooms[code]
	if !ok {
		return nil, "", false
	}
	return e.room, code, true
}

// HandleDisconnect removes the connection's player from its room and
// forwards the removal; if that empties the room, it is torn down
// immediately (spec.md §4.6 "Failure semantics").
func (reg *Registry) HandleDisconnect(connectionID string) {
	reg.mu.Lock()
	code, ok := reg.connToRoom[connectionID]
	delete(reg.connToRoom, connectionID)
	reg.mu.Unlock()
	if !ok {
		return
	}

	reg.mu.Lock()
	e, ok := reg.rooms[code]
	reg.mu.Unlock()
	if !ok {
		return
	}

	empty := e.room.RemovePlayer(connectionID)
	if empty {
		reg.teardown(code)
	} else {
		reg.publish(code, "updated", len(e.room.CurrentState().Players))
	}
}

// teardown is the OnTerminal callback a room fires when its match ends
// naturally, and is also called directly for empty-room and TTL cleanup.
// It is idempotent: a code no longer present is a no-op.
func (reg *Registry) teardown(code string) {
	reg.mu.Lock()
	e, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, code)
	for conn, c := range reg.connToRoom {
		if c == code {
			delete(reg.connToRoom, conn)
		}
	}
	reg.mu.Unlock()

	e.ttlTimer.Stop()
	e.room.Stop()
	reg.publish(code, "closed", 0)
}

func (reg *Registry) forceTeardown(code string) {
	if reg.logger != nil {
		reg.logger.Warn("room exceeded absolute TTL, forcing teardown", "room", code)
	}
	reg.teardown(code)
}

func (reg *Registry) publish(code, kind string, playerCount int) {
	if reg.directory == nil {
		return
	}
	reg.directory.Publish(DirectoryEvent{
		RoomCode:    code,
		Kind:        kind,
		PlayerCount: playerCount,
		CreatedAt:   time.Now(),
	})
}

func (reg *Registry) componentLogger(code string) *log.Logger {
	if reg.logger == nil {
		return nil
	}
	return reg.logger.With("room", code)
}
