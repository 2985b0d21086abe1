package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// all holds until the first SUBSCRIBE; after that only markets are sent.
	subMu   sync.RWMutex
	all     bool
	markets map[string]bool
}

// clientMsg is any message a client may send.
//
//	{"type":"SUBSCRIBE","markets":["BTCUSDT"]}
//	{"type":"UNSUBSCRIBE","markets":["BTCUSDT"]}
//	{"type":"REPLAY","market":"BTCUSDT","after":12}
//	{"ping":1712345678901}
type clientMsg struct {
	Type    string   `json:"type"`
	Markets []string `json:"markets"`
	Market  string   `json:"market"`
	After   int64    `json:"after"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		all:     true,
		markets: make(map[string]bool),
	}
}

func (c *Client) wants(market string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.all || c.markets[market]
}

// enqueue is only called from readPump, which is also the only caller of
// hub.remove, so send is still open here.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
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

			// Coalesce queued envelopes into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMsg) {
	switch msg.Type {
	case "SUBSCRIBE":
		c.subMu.Lock()
		c.all = false
		for _, m := range msg.Markets {
			c.markets[m] = true
		}
		c.subMu.Unlock()
		c.hub.log.Debug("client subscribed", zap.Strings("markets", msg.Markets))

	case "UNSUBSCRIBE":
		c.subMu.Lock()
		c.all = false
		for _, m := range msg.Markets {
			delete(c.markets, m)
		}
		c.subMu.Unlock()

	case "REPLAY":
		for _, env := range c.hub.Replay(Channel(msg.Market), msg.After) {
			c.enqueue(env)
		}

	default:
		if msg.Ping > 0 {
			pong, _ := json.Marshal(map[string]int64{
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.enqueue(pong)
		}
	}
}
