package ws

import (
	"context"
	"net/http"
	"skillgate/internal/model"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Authenticated by team API key, not by origin
	},
}

// TeamAuthenticator resolves a team API key
type TeamAuthenticator interface {
	AuthenticateTeam(ctx context.Context, apiKey string) (*model.Team, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub   *Hub
	teams TeamAuthenticator
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, teams TeamAuthenticator) *Handler {
	return &Handler{
		hub:   hub,
		teams: teams,
	}
}

// TeamFeed handles GET /v1/ws/teams/{teamId}/feed
func (h *Handler) TeamFeed(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]

	key := r.URL.Query().Get("key")
	if key == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			key = auth[7:]
		}
	}
	if key == "" {
		http.Error(w, "missing api key", http.StatusUnauthorized)
		return
	}

	team, err := h.teams.AuthenticateTeam(r.Context(), key)
	if err != nil {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	if team.ID != teamID {
		http.Error(w, "key not valid for this team", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	conn := &Connection{
		TeamID: teamID,
		Send:   make(chan []byte, 256),
		Hub:    h.hub,
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The feed is push-only; reads only service control frames
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("teamId", conn.TeamID).Msg("WebSocket closed")
			}
			break
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
