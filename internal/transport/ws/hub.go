package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Team feed message types
const (
	MsgAttemptStarted   MessageType = "attempt_started"
	MsgAttemptCompleted MessageType = "attempt_completed"
	MsgAttemptAbandoned MessageType = "attempt_abandoned"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans attempt events out to the feed connections of each team
type Hub struct {
	// Team -> connections
	teamConns map[string]map[*Connection]struct{}

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once
}

// Connection represents a WebSocket connection
type Connection struct {
	TeamID string
	Send   chan []byte
	Hub    *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	TeamID  string
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		teamConns:  make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for teamID, conns := range h.teamConns {
				for conn := range conns {
					close(conn.Send)
				}
				delete(h.teamConns, teamID)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.teamConns[conn.TeamID] == nil {
				h.teamConns[conn.TeamID] = make(map[*Connection]struct{})
			}
			h.teamConns[conn.TeamID][conn] = struct{}{}
			h.mu.Unlock()
			log.Debug().Str("teamId", conn.TeamID).Msg("Feed client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.teamConns[conn.TeamID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.teamConns, conn.TeamID)
					}
					log.Debug().Str("teamId", conn.TeamID).Msg("Feed client disconnected")
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Message)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to encode feed message")
				continue
			}
			h.mu.RLock()
			for conn := range h.teamConns[msg.TeamID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close disconnects every client and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ConnectionCount returns the number of feed clients of a team
func (h *Hub) ConnectionCount(teamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.teamConns[teamID])
}

// BroadcastToTeam sends a message to every feed client of a team (implements service.Broadcaster).
// It never blocks the caller; events are dropped when the hub is saturated.
func (h *Hub) BroadcastToTeam(teamID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("type", msgType).Msg("Failed to encode feed payload")
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{
		TeamID: teamID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}:
	default:
		log.Warn().Str("teamId", teamID).Str("type", msgType).Msg("Feed backlog full, dropping event")
	}
}
