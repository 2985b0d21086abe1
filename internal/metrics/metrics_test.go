package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_PrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ActionsTotal.WithLabelValues("BTCUSDT", "BUY").Inc()
	m.ActionsTotal.WithLabelValues("BTCUSDT", "BUY").Inc()
	m.StopLossTotal.WithLabelValues("BTCUSDT").Inc()

	if got := testutil.ToFloat64(m.ActionsTotal.WithLabelValues("BTCUSDT", "BUY")); got != 2 {
		t.Errorf("actions BUY = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StopLossTotal.WithLabelValues("BTCUSDT")); got != 1 {
		t.Errorf("stop-loss = %v, want 1", got)
	}

	// a second set on another registry must not panic with duplicate registration
	NewMetrics(prometheus.NewRegistry())
}

func TestHandler_ServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.FillsTotal.WithLabelValues("ETHUSDT", "buy").Inc()

	health := NewHealthStatus()
	health.MarkEvaluated("ETHUSDT", time.Now())
	srv := httptest.NewServer(Handler(reg, health))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), `signalbot_fills_total{market="ETHUSDT",side="buy"} 1`) {
		t.Errorf("fill counter missing from /metrics output")
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status        string            `json:"status"`
		EvaluationAge map[string]string `json:"evaluation_age"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.EvaluationAge["ETHUSDT"] == "" {
		t.Errorf("unexpected health body %+v", body)
	}
}

func TestHealth_DegradedWhenRedisDown(t *testing.T) {
	health := NewHealthStatus()
	health.SetRedisEnabled(true)

	rec := httptest.NewRecorder()
	health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	health.SetRedisEnabled(false)
	health.SetJournalOK(false)
	rec = httptest.NewRecorder()
	health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("journal down: status = %d, want 503", rec.Code)
	}
}
