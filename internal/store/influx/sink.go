// Package influx writes every evaluated signal row to InfluxDB so the
// indicator values behind each decision can be charted.
package influx

import (
	"context"
	"fmt"
	"sort"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
	"cryptosignal/internal/signal"
)

const measurement = "signals"

// Config configures the sink.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// SignalSink writes signal rows synchronously.
type SignalSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	log    *zap.Logger
}

// NewSignalSink creates a sink. It does not contact the server.
func NewSignalSink(cfg Config, log *zap.Logger) *SignalSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &SignalSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:    log.Named("influx"),
	}
}

// WriteSignal writes one point for sig, tagged with the action ev carried.
func (s *SignalSink) WriteSignal(ctx context.Context, sig signal.Signal, ev model.ActionEvent) error {
	if err := s.write.WritePoint(ctx, Point(sig, ev)); err != nil {
		return fmt.Errorf("influx write %s: %w", sig.Market, err)
	}
	return nil
}

// Point builds the point of one evaluation. Indicator values become float
// fields and active flags become boolean fields; the point is timestamped
// with the bar date.
func Point(sig signal.Signal, ev model.ActionEvent) *write.Point {
	action := string(ev.Action)
	if action == "" {
		action = string(model.ActionWait)
	}
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("action", action).
		AddTag("market", sig.Market).
		AddField("close", sig.Close).
		AddField("market_price", ev.MarketPrice).
		AddField("filled", ev.Filled).
		SetTime(sig.Date)

	names := make([]string, 0, len(sig.Values))
	for name := range sig.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.AddField(name, sig.Values[name])
	}
	for _, name := range sig.Active() {
		p.AddField(name, true)
	}
	return p
}

// Close flushes and closes the client.
func (s *SignalSink) Close() {
	s.client.Close()
}
