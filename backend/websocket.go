// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ttbt-io/pagerunner/runner"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Number of recent events replayed to a new client.
	replaySize = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeEvent  = "EVENT"
	MsgTypeReplay = "REPLAY"
	MsgTypePing   = "PING"
	MsgTypePong   = "PONG"
	MsgTypeError  = "ERROR"
)

// Message represents a WebSocket message
type Message struct {
	Type   string            `json:"type"`
	Event  *runner.RunEvent  `json:"event,omitempty"`
	Events []runner.RunEvent `json:"events,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// clientMessage is a reply to a single client, routed through the hub so
// that only the run loop writes to client.send.
type clientMessage struct {
	client *wsClient
	msg    Message
}

// Hub fans run events out to the connected dashboards. It implements
// runner.Observer.
type Hub struct {
	// Registered clients.
	clients map[*wsClient]bool

	// Inbound run events.
	events chan runner.RunEvent

	// Register requests from the clients.
	register chan *wsClient

	// Unregister requests from clients.
	unregister chan *wsClient

	// Replies to individual clients.
	replies chan clientMessage

	// Recent events, oldest first.
	history []runner.RunEvent

	metrics *Metrics
	debugf  func(string, ...any)

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

var _ runner.Observer = (*Hub)(nil)

// NewHub creates a Hub and starts its run loop. metrics may be nil.
func NewHub(metrics *Metrics, debugf func(string, ...any)) *Hub {
	if debugf == nil {
		debugf = func(string, ...any) {}
	}
	h := &Hub{
		clients:    make(map[*wsClient]bool),
		events:     make(chan runner.RunEvent, 1024),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		replies:    make(chan clientMessage),
		metrics:    metrics,
		debugf:     debugf,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go h.run()
	return h
}

// Observe queues ev for broadcast. It never blocks: events are dropped when
// the queue is full or the hub is closed.
func (h *Hub) Observe(ev runner.RunEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	default:
		log.Printf("Hub: event queue full, dropping %s for run %s", ev.Type, ev.RunID)
	}
}

// Close disconnects every client and stops the run loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if len(h.history) > 0 {
				client.sendJSON(Message{Type: MsgTypeReplay, Events: append([]runner.RunEvent(nil), h.history...)})
			}
			h.debugf("ws client connected (%d total)", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case cm := <-h.replies:
			if h.clients[cm.client] {
				cm.client.sendJSON(cm.msg)
			}
		case ev := <-h.events:
			h.handleEvent(ev)
		case <-h.done:
			for len(h.events) > 0 {
				h.handleEvent(<-h.events)
			}
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

func (h *Hub) handleEvent(ev runner.RunEvent) {
	if h.metrics != nil {
		h.metrics.Observe(ev)
	}
	h.history = append(h.history, ev)
	if len(h.history) > replaySize {
		h.history = h.history[len(h.history)-replaySize:]
	}
	h.broadcast(Message{Type: MsgTypeEvent, Event: &ev})
}

// broadcast drops clients that cannot keep up.
func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			log.Printf("Hub: dropping slow client %s", maskEmail(client.userId))
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	userId string
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			c.reply(Message{Type: MsgTypePong})
		default:
			c.hub.debugf("unknown message type: %s", msg.Type)
			c.reply(Message{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON drops msg when the client's buffer is full. Only the hub's run
// loop calls it.
func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *wsClient) reply(msg Message) {
	select {
	case c.hub.replies <- clientMessage{client: c, msg: msg}:
	case <-c.hub.stopped:
	}
}

// ServeWS handles websocket requests from the peer.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &wsClient{hub: hub, conn: conn, send: make(chan Message, 256), userId: getUserID(r)}
	select {
	case hub.register <- client:
	case <-hub.stopped:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
