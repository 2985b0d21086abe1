package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/position"
)

type staticStates []position.State

func (s staticStates) All() []position.State { return s }

type envelope struct {
	Channel    string            `json:"channel"`
	Data       model.ActionEvent `json:"data"`
	TS         string            `json:"ts"`
	Seq        int64             `json:"seq"`
	ChannelSeq int64             `json:"channel_seq"`
}

func newTestGateway(t *testing.T) (*Hub, *httptest.Server, prometheus.Gauge) {
	t.Helper()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gateway_clients"})
	st := position.New("BTCUSDT", "BTC/USDT", 5)
	hub := NewHub(staticStates{st}, zap.NewNop(), gauge)
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv, gauge
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads one frame and splits coalesced envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var out []envelope
	for _, line := range strings.Split(string(raw), "\n") {
		var e envelope
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad envelope %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, srv, gauge := newTestGateway(t)
	conn := dial(t, srv)
	waitFor(t, func() bool { return testutil.ToFloat64(gauge) == 1 })

	hub.Publish(model.ActionEvent{Market: "BTCUSDT", Action: model.ActionBuy, Close: 100, Filled: true})
	envs := readEnvelopes(t, conn)
	if len(envs) != 1 {
		t.Fatalf("got %d envelopes", len(envs))
	}
	e := envs[0]
	if e.Channel != "action:BTCUSDT" || e.Data.Action != model.ActionBuy || e.ChannelSeq != 1 || e.Seq != 1 {
		t.Errorf("envelope = %+v", e)
	}
	if _, err := time.Parse(time.RFC3339Nano, e.TS); err != nil {
		t.Errorf("ts: %v", err)
	}
}

func TestHub_SubscriptionFilters(t *testing.T) {
	hub, srv, _ := newTestGateway(t)
	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	if err := conn.WriteJSON(map[string]any{"type": "SUBSCRIBE", "markets": []string{"ETHUSDT"}}); err != nil {
		t.Fatal(err)
	}
	// subscription is applied asynchronously; wait until the client reports it
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.conns {
			return !c.wants("BTCUSDT")
		}
		return false
	})

	hub.Publish(model.ActionEvent{Market: "BTCUSDT", Action: model.ActionSell})
	hub.Publish(model.ActionEvent{Market: "ETHUSDT", Action: model.ActionWait})
	envs := readEnvelopes(t, conn)
	for _, e := range envs {
		if e.Data.Market != "ETHUSDT" {
			t.Errorf("received %s event despite subscription", e.Data.Market)
		}
	}
}

func TestClient_UnsubscribingLastMarketSendsNothing(t *testing.T) {
	hub := NewHub(staticStates{}, zap.NewNop(), prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_unsub_clients"}))
	t.Cleanup(hub.Close)
	c := newClient(hub, nil)

	if !c.wants("BTCUSDT") || !c.wants("ETHUSDT") {
		t.Fatal("a fresh client receives every market")
	}
	c.handle(clientMsg{Type: "SUBSCRIBE", Markets: []string{"BTCUSDT"}})
	if !c.wants("BTCUSDT") || c.wants("ETHUSDT") {
		t.Error("subscription to BTCUSDT not applied")
	}
	c.handle(clientMsg{Type: "UNSUBSCRIBE", Markets: []string{"BTCUSDT"}})
	if c.wants("BTCUSDT") || c.wants("ETHUSDT") {
		t.Error("unsubscribing the only market must not fall back to all markets")
	}
}

func TestHub_LatestSentOnConnect(t *testing.T) {
	hub, srv, _ := newTestGateway(t)
	hub.Publish(model.ActionEvent{Market: "BTCUSDT", Action: model.ActionWait})
	hub.Publish(model.ActionEvent{Market: "BTCUSDT", Action: model.ActionBuy})

	conn := dial(t, srv)
	envs := readEnvelopes(t, conn)
	if len(envs) != 1 || envs[0].Data.Action != model.ActionBuy || envs[0].ChannelSeq != 2 {
		t.Errorf("initial state = %+v", envs)
	}
}

func TestRoutes_StateAndMissed(t *testing.T) {
	hub, srv, _ := newTestGateway(t)
	for i := 0; i < 3; i++ {
		hub.Publish(model.ActionEvent{Market: "BTCUSDT", Action: model.ActionWait})
	}

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	var states []position.State
	json.NewDecoder(resp.Body).Decode(&states)
	resp.Body.Close()
	if len(states) != 1 || states[0].Market != "BTCUSDT" {
		t.Errorf("state = %+v", states)
	}

	resp, err = http.Get(srv.URL + "/api/missed?market=BTCUSDT&after=1")
	if err != nil {
		t.Fatal(err)
	}
	var missed []envelope
	json.NewDecoder(resp.Body).Decode(&missed)
	resp.Body.Close()
	if len(missed) != 2 || missed[0].ChannelSeq != 2 || missed[1].ChannelSeq != 3 {
		t.Errorf("missed = %+v", missed)
	}

	resp, _ = http.Get(srv.URL + "/api/missed")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing market: status %d", resp.StatusCode)
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, []byte{byte(i)})
	}
	if rb.Len() != 5 || rb.Last() != 8 {
		t.Fatalf("len=%d last=%d", rb.Len(), rb.Last())
	}
	got := rb.Since(0)
	if len(got) != 5 || got[0][0] != 4 || got[4][0] != 8 {
		t.Errorf("Since(0) = %v", got)
	}
	if got := rb.Since(6); len(got) != 2 {
		t.Errorf("Since(6) returned %d entries", len(got))
	}
	if got := NewReplayBuffer(3).Since(0); len(got) != 0 {
		t.Errorf("empty buffer returned %d entries", len(got))
	}
}
