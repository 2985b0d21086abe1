// Package gateway streams action events to WebSocket clients and serves
// the current position states over REST.
package gateway

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

const replayDepth = 200

// StateSource lists the current position states. position.Registry
// satisfies it.
type StateSource interface {
	All() []position.State
}

// Hub fans action events out to WebSocket clients. Every market has its
// own channel ("action:<market>") with a monotonic sequence number and a
// replay buffer, so a reconnecting client can ask for what it missed.
type Hub struct {
	states  StateSource
	log     *zap.Logger
	clients prometheus.Gauge
	now     func() time.Time

	mu      sync.RWMutex
	conns   map[*Client]bool
	latest  map[string]latestEntry
	replays map[string]*ReplayBuffer
	seq     int64
}

type latestEntry struct {
	Event    model.ActionEvent
	Envelope []byte
	Seq      int64
}

// NewHub creates a hub. clients may be nil.
func NewHub(states StateSource, log *zap.Logger, clients prometheus.Gauge) *Hub {
	return &Hub{
		states:  states,
		log:     log.Named("gateway"),
		clients: clients,
		now:     time.Now,
		conns:   make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replays: make(map[string]*ReplayBuffer),
	}
}

// Channel returns the channel an action event of market is sent on.
func Channel(market string) string { return "action:" + market }

// Publish broadcasts ev to every client subscribed to its market.
func (h *Hub) Publish(ev model.ActionEvent) {
	channel := Channel(ev.Market)
	data := ev.JSON()

	h.mu.Lock()
	rb, ok := h.replays[channel]
	if !ok {
		rb = NewReplayBuffer(replayDepth)
		h.replays[channel] = rb
	}
	seq := rb.Last() + 1
	h.seq++
	buf := buildEnvelope(channel, data, h.now().UTC(), h.seq, seq)
	rb.Push(seq, buf)
	h.latest[channel] = latestEntry{Event: ev, Envelope: buf, Seq: seq}

	for c := range h.conns {
		if !c.wants(ev.Market) {
			continue
		}
		select {
		case c.send <- buf:
		default:
			h.log.Warn("client send buffer full, dropping event", zap.String("channel", channel))
		}
	}
	h.mu.Unlock()
}

// buildEnvelope frames data as
// {"channel":...,"data":...,"ts":...,"seq":N,"channel_seq":M}.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// Attach registers a WebSocket connection. Clients start subscribed to
// every market and receive the latest event of each.
func (h *Hub) Attach(conn *websocket.Conn) *Client {
	c := newClient(h, conn)

	h.mu.Lock()
	h.conns[c] = true
	count := len(h.conns)
	for _, e := range h.latest {
		select {
		case c.send <- e.Envelope:
		default:
		}
	}
	h.mu.Unlock()

	if h.clients != nil {
		h.clients.Set(float64(count))
	}
	h.log.Info("ws client connected", zap.Int("clients", count))

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.conns[c] {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	close(c.send)
	count := len(h.conns)
	h.mu.Unlock()

	if h.clients != nil {
		h.clients.Set(float64(count))
	}
	h.log.Info("ws client disconnected", zap.Int("clients", count))
}

// Replay returns the buffered envelopes of channel with channel_seq > after.
func (h *Hub) Replay(channel string, after int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replays[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return rb.Since(after)
}

// Latest returns the last event of every market, sorted by market.
func (h *Hub) Latest() []model.ActionEvent {
	h.mu.RLock()
	out := make([]model.ActionEvent, 0, len(h.latest))
	for _, e := range h.latest {
		out = append(out, e.Event)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.conn.Close()
	}
}
