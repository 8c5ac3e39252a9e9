// Package wsbackend is an example concrete CEL backend: it fans every
// event record out to connected WebSocket clients as JSON. It is built
// as a plain backend.Callback, not as its own HTTP server -- operators
// mount Backend.HandleWebSocket on whatever mux their process already
// runs.
//
// A single Hub goroutine owns the client set and the broadcast channel;
// client writes are isolated behind a per-client send buffer so one
// slow reader cannot block the hub, and a registered client with a full
// send buffer is dropped rather than allowed to back up the whole
// pipeline.
package wsbackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"celengine/internal/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireRecord is the JSON shape pushed to every client: a flat key/value
// bag with typed fields.
type wireRecord struct {
	EventType     string `json:"event_type"`
	EventTimeSec  int64  `json:"event_time_sec"`
	EventTimeUsec int64  `json:"event_time_usec"`
	UserEventName string `json:"user_event_name,omitempty"`
	CallerName    string `json:"caller_name,omitempty"`
	CallerNumber  string `json:"caller_number,omitempty"`
	ANI           string `json:"ani,omitempty"`
	RDNIS         string `json:"rdnis,omitempty"`
	DNID          string `json:"dnid,omitempty"`
	Context       string `json:"context,omitempty"`
	Extension     string `json:"extension,omitempty"`
	ChannelName   string `json:"channel_name"`
	AppName       string `json:"app_name,omitempty"`
	AppData       string `json:"app_data,omitempty"`
	AMAFlags      uint   `json:"ama_flags"`
	AccountCode   string `json:"account_code,omitempty"`
	PeerAccount   string `json:"peer_account,omitempty"`
	UniqueID      string `json:"unique_id"`
	LinkedID      string `json:"linked_id,omitempty"`
	UserField     string `json:"user_field,omitempty"`
	Extras        string `json:"extras,omitempty"`
	PeerName      string `json:"peer_name,omitempty"`
}

func toWire(r *event.Record) wireRecord {
	return wireRecord{
		EventType:     event.Name(r.Kind),
		EventTimeSec:  r.TimeSec,
		EventTimeUsec: r.TimeUsec,
		UserEventName: r.UserName,
		CallerName:    r.CallerName,
		CallerNumber:  r.CallerNumber,
		ANI:           r.ANI,
		RDNIS:         r.RDNIS,
		DNID:          r.DNID,
		Context:       r.Context,
		Extension:     r.Extension,
		ChannelName:   r.ChannelName,
		AppName:       r.AppName,
		AppData:       r.AppData,
		AMAFlags:      r.AMAFlags,
		AccountCode:   r.AccountCode,
		PeerAccount:   r.PeerAccount,
		UniqueID:      r.UniqueID,
		LinkedID:      r.LinkedID,
		UserField:     r.UserField,
		Extras:        r.Extras,
		PeerName:      r.PeerName,
	}
}

// client is one connected WebSocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Backend fans CEL event records out to connected WebSocket clients.
type Backend struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
}

// New creates a Backend. Run its Run loop in its own goroutine before
// registering it with the engine.
func New(log zerolog.Logger) *Backend {
	return &Backend{
		log:        log,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set; it must run in its own goroutine for the
// lifetime of the Backend.
func (b *Backend) Run() {
	for {
		select {
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c] = true
			b.mu.Unlock()
		case c := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.send)
			}
			b.mu.Unlock()
		}
	}
}

// Callback is registered with the engine's backend registry. It must
// never block: a full per-client send buffer drops that client instead
// of stalling the dispatcher.
func (b *Backend) Callback(r *event.Record) {
	payload, err := json.Marshal(toWire(r))
	if err != nil {
		b.log.Error().Err(err).Msg("cel/wsbackend: marshaling record failed")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			b.log.Warn().Msg("cel/wsbackend: client send buffer full, dropping client")
			go func(c *client) { b.unregister <- c }(c)
		}
	}
}

// HandleWebSocket upgrades r into a tracked client connection. Mount it
// on any net/http mux the host process runs.
func (b *Backend) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("cel/wsbackend: upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256)}
	b.register <- c

	go b.writePump(c)
	go b.readPump(c)
}

func (b *Backend) readPump(c *client) {
	defer func() {
		b.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (b *Backend) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Backend) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
