package transport

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pacarena/server/internal/room"
)

// NewRouter builds the gin engine covering the REST control-plane
// (spec.md §6 expansion: "createRoom/joinRoom are additionally reachable
// as plain REST calls") plus the WebSocket upgrade endpoint, grounded on
// clairegregg's chunk_server setupRouter (gin.Default() + cors.Default()
// + one handler per route).
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.POST("/rooms", func(c *gin.Context) {
		rm, err := s.reg.CreateRoom()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "roomCode": rm.Code()})
	})

	// POST /rooms/:code/join resolves whether a room code is joinable
	// before the client pays for a WebSocket handshake; the actual player
	// registration still happens over /ws, since it needs the
	// connection-scoped id spec.md §3's [EXPANSION] introduces. A code this
	// instance doesn't hold locally still falls back to the shared
	// directory (spec.md §4.7a): if another instance owns it, the caller
	// gets that instance id back instead of a bare 404.
	r.POST("/rooms/:code/join", func(c *gin.Context) {
		code := c.Param("code")
		rm, remoteInstanceID, ok := s.reg.LookupDirectory(code)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "room not found"})
			return
		}
		if rm == nil {
			c.JSON(http.StatusMisdirectedRequest, gin.H{"ok": false, "error": "room hosted on another instance", "instanceId": remoteInstanceID})
			return
		}
		state := rm.CurrentState()
		if state.Mode == room.ModeGameOver {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "room already finished"})
			return
		}
		if len(state.Players) >= len(room.AllGhostIdentities) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "room is full"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "roomCode": code})
	})

	r.GET("/ws", func(c *gin.Context) {
		s.HandleWebSocket(c.Writer, c.Request)
	})

	return r
}
