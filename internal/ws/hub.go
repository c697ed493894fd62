package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Msg is a message sent to clients.
type Msg struct {
	Type       string `json:"type"`
	ListingKey string `json:"listing_key"`
	Data       any    `json:"data"`
}

// Hub manages per-listing WebSocket subscriptions.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*conn]bool // listing key -> set of conns
	allConn map[*conn]bool
	log     *zap.SugaredLogger
}

type conn struct {
	ws      *websocket.Conn
	send    chan []byte
	hub     *Hub
	listing string
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*conn]bool),
		allConn: make(map[*conn]bool),
		log:     log.Named("ws"),
	}
}

// Publish sends a message to all subscribers of a listing.
func (h *Hub) Publish(listingKey, msgType string, data any) {
	msg := Msg{Type: msgType, ListingKey: listingKey, Data: data}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	room := h.rooms[listingKey]
	h.mu.RUnlock()
	for c := range room {
		select {
		case c.send <- b:
		default:
			// slow client, drop
		}
	}
}

// HandleWS is the HTTP handler for WebSocket connections.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("upgrade failed", "err", err)
		return
	}
	c := &conn{
		ws:   wsConn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		// Subscription message: {"action":"subscribe","listing_key":"venue/7"}
		var sub struct {
			Action     string `json:"action"`
			ListingKey string `json:"listing_key"`
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.hub.subscribe(c, sub.ListingKey)
		case "unsubscribe":
			c.hub.unsubscribe(c, sub.ListingKey)
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) subscribe(c *conn, listingKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// One room per connection; leave the previous one first.
	if c.listing != "" {
		if room, ok := h.rooms[c.listing]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.listing)
			}
		}
	}
	c.listing = listingKey
	room, ok := h.rooms[listingKey]
	if !ok {
		room = make(map[*conn]bool)
		h.rooms[listingKey] = room
	}
	room[c] = true
}

func (h *Hub) unsubscribe(c *conn, listingKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[listingKey]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, listingKey)
		}
	}
	if c.listing == listingKey {
		c.listing = ""
	}
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.allConn, c)
	if c.listing != "" {
		if room, ok := h.rooms[c.listing]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.listing)
			}
		}
	}
	close(c.send)
}
