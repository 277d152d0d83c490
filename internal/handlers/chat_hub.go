package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GlobalHub is the single hub instance for the whole process.
var GlobalHub = NewChatHub()

// ThreadEvent is what the hub pushes to subscribers of a thread.
type ThreadEvent struct {
	Type     string      `json:"type"`
	ThreadID uint        `json:"thread_id"`
	Payload  interface{} `json:"payload"`
}

// subCommand is what clients send: sub/unsub on a thread id. Both are
// idempotent.
type subCommand struct {
	Action   string `json:"action"`
	ThreadID uint   `json:"thread_id"`
}

type ChatClient struct {
	hub     *ChatHub
	conn    *websocket.Conn
	send    chan []byte
	userID  uint
	threads map[uint]bool
}

// ChatHub fans thread events out to subscribed sockets. All state is
// owned by the Run goroutine; BroadcastThread hands work over via the
// broadcast channel so the workflow never touches hub internals.
type ChatHub struct {
	threads    map[uint]map[*ChatClient]bool
	broadcast  chan ThreadEvent
	register   chan *ChatClient
	unregister chan *ChatClient
	mu         sync.Mutex
}

func NewChatHub() *ChatHub {
	return &ChatHub{
		threads:    make(map[uint]map[*ChatClient]bool),
		broadcast:  make(chan ThreadEvent, 16),
		register:   make(chan *ChatClient),
		unregister: make(chan *ChatClient),
	}
}

func (h *ChatHub) Run() {
	for {
		select {
		case client := <-h.register:
			slog.Info("Chat client connected", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			for threadID := range client.threads {
				if subs, ok := h.threads[threadID]; ok {
					delete(subs, client)
					if len(subs) == 0 {
						delete(h.threads, threadID)
					}
				}
			}
			close(client.send)
			h.mu.Unlock()
			slog.Info("Chat client disconnected", "user_id", client.userID)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// BroadcastThread pushes a payload to every subscriber of the thread.
func (h *ChatHub) BroadcastThread(threadID uint, payload interface{}) {
	h.broadcast <- ThreadEvent{Type: "thread_event", ThreadID: threadID, Payload: payload}
}

func (h *ChatHub) deliver(event ThreadEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal thread event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.threads[event.ThreadID] {
		select {
		case client.send <- data:
		default:
			delete(h.threads[event.ThreadID], client)
			close(client.send)
		}
	}
}

func (h *ChatHub) subscribe(client *ChatClient, threadID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.threads[threadID] == nil {
		h.threads[threadID] = make(map[*ChatClient]bool)
	}
	h.threads[threadID][client] = true
	client.threads[threadID] = true
}

func (h *ChatHub) unsubscribe(client *ChatClient, threadID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.threads[threadID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.threads, threadID)
		}
	}
	delete(client.threads, threadID)
}

func (c *ChatClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Unexpected websocket close", "error", err)
			}
			break
		}

		var cmd subCommand
		if err := json.Unmarshal(messageBytes, &cmd); err != nil {
			slog.Error("Invalid subscription command", "error", err)
			continue
		}

		switch cmd.Action {
		case "sub":
			c.hub.subscribe(c, cmd.ThreadID)
		case "unsub":
			c.hub.unsubscribe(c, cmd.ThreadID)
		}
	}
}

func (c *ChatClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Error("Failed to write to websocket", "error", err)
			return
		}
	}
}

// ChatWSEndpoint upgrades the connection and starts the pumps. Clients
// then sub/unsub to revision threads by item id.
func ChatWSEndpoint(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	client := &ChatClient{
		hub:     GlobalHub,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID.(uint),
		threads: make(map[uint]bool),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
