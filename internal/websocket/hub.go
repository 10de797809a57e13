package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"taskhive/pkg/logger"
)

// Message type per RFC 6455; matches websocket.TextMessage.
const TextMessage = 1

// Conn is the subset of a websocket connection the hub needs. The concrete
// type is *websocket.Conn from gofiber/websocket.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected websocket peer.
type Client struct {
	ID   string
	Conn Conn
	Mu   sync.Mutex
}

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type RoomJoin struct {
	Client *Client
	TeamID int
}

type RoomMessage struct {
	TeamID  int
	Payload []byte
}

// Hub manages websocket connections grouped into one room per team.
// Delivery is fire-and-forget: a client that missed an event re-fetches
// from the queryable history.
type Hub struct {
	Clients    map[*Client]int // client -> joined team id, 0 = no room yet
	Rooms      map[int]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Join       chan RoomJoin
	Broadcast  chan RoomMessage

	// OnChatMessage persists and rebroadcasts an inbound chat message.
	// Set once at startup, before Run.
	OnChatMessage func(teamID int, email, message string)

	quit chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]int),
		Rooms:      make(map[int]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Join:       make(chan RoomJoin),
		Broadcast:  make(chan RoomMessage, 64),
		quit:       make(chan struct{}),
	}
}

// Run drives the hub loop: register, unregister, room joins and room
// broadcasts. Runs until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = 0
		case client := <-h.Unregister:
			h.remove(client)
		case join := <-h.Join:
			h.join(join.Client, join.TeamID)
		case msg := <-h.Broadcast:
			h.fanOut(msg.TeamID, msg.Payload)
		case <-h.quit:
			for client := range h.Clients {
				h.remove(client)
			}
			return
		}
	}
}

// Stop tears the hub down and closes every connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// Emit broadcasts a named event to every client joined to the team's room.
// Never blocks the caller: when the hub is stopped or saturated the event is
// dropped, and consumers recover via re-fetch.
func (h *Hub) Emit(teamID int, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding broadcast payload", zap.String("event", event), zap.Error(err))
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		logger.ErrorLogger.Error("Error encoding broadcast envelope", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- RoomMessage{TeamID: teamID, Payload: payload}:
	case <-h.quit:
	default:
		logger.ErrorLogger.Error("Broadcast channel full, dropping event",
			zap.String("event", event), zap.Int("team_id", teamID))
	}
}

func (h *Hub) join(client *Client, teamID int) {
	if _, ok := h.Clients[client]; !ok {
		h.Clients[client] = 0
	}
	if old := h.Clients[client]; old != 0 {
		delete(h.Rooms[old], client)
	}
	if h.Rooms[teamID] == nil {
		h.Rooms[teamID] = make(map[*Client]bool)
	}
	h.Rooms[teamID][client] = true
	h.Clients[client] = teamID
	logger.SystemLogger.Info("Client joined room",
		zap.String("client_id", client.ID), zap.Int("team_id", teamID))
}

func (h *Hub) remove(client *Client) {
	teamID, ok := h.Clients[client]
	if !ok {
		return
	}
	if teamID != 0 {
		delete(h.Rooms[teamID], client)
		if len(h.Rooms[teamID]) == 0 {
			delete(h.Rooms, teamID)
		}
	}
	delete(h.Clients, client)
	client.Conn.Close()
}

func (h *Hub) fanOut(teamID int, payload []byte) {
	for client := range h.Rooms[teamID] {
		client.Mu.Lock()
		err := client.Conn.WriteMessage(TextMessage, payload)
		client.Mu.Unlock()
		if err != nil {
			h.remove(client)
		}
	}
}
