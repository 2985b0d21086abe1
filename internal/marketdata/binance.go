// Package marketdata retrieves candles and current prices from Binance spot.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"cryptosignal/internal/model"
)

// DefaultLimit is the number of bars fetched per call.
const DefaultLimit = 300

var intervals = map[int]string{
	60:    "1m",
	300:   "5m",
	900:   "15m",
	3600:  "1h",
	21600: "6h",
	86400: "1d",
}

// Interval returns the Binance kline interval of a granularity in seconds.
func Interval(granularity int) (string, error) {
	iv, ok := intervals[granularity]
	if !ok {
		return "", fmt.Errorf("marketdata: unsupported granularity %d", granularity)
	}
	return iv, nil
}

// BinanceFeed implements model.BarFeed and model.PriceQuoter.
type BinanceFeed struct {
	client *binance.Client
	limit  int
	now    func() time.Time
}

// NewBinanceFeed creates a feed over client. limit <= 0 uses DefaultLimit.
func NewBinanceFeed(client *binance.Client, limit int) *BinanceFeed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &BinanceFeed{client: client, limit: limit, now: time.Now}
}

// Bars returns the most recent closed bars, oldest first. The bar still
// being formed is dropped.
func (f *BinanceFeed) Bars(ctx context.Context, market string, granularity int) ([]model.PriceBar, error) {
	return f.fetch(ctx, market, granularity, 0)
}

// BarsSince returns closed bars starting at from, oldest first.
func (f *BinanceFeed) BarsSince(ctx context.Context, market string, granularity int, from time.Time) ([]model.PriceBar, error) {
	return f.fetch(ctx, market, granularity, from.UnixMilli())
}

func (f *BinanceFeed) fetch(ctx context.Context, market string, granularity int, startMs int64) ([]model.PriceBar, error) {
	iv, err := Interval(granularity)
	if err != nil {
		return nil, err
	}
	svc := f.client.NewKlinesService().Symbol(market).Interval(iv).Limit(f.limit)
	if startMs > 0 {
		svc = svc.StartTime(startMs)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "binance: klines %s %s", market, iv)
	}

	nowMs := f.now().UnixMilli()
	bars := make([]model.PriceBar, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			continue
		}
		b, err := barFromKline(market, granularity, k)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func barFromKline(market string, granularity int, k *binance.Kline) (model.PriceBar, error) {
	b := model.PriceBar{
		Date:        time.UnixMilli(k.OpenTime).UTC(),
		Market:      market,
		Granularity: granularity,
	}
	for _, f := range []struct {
		dst *float64
		raw string
	}{{&b.Low, k.Low}, {&b.High, k.High}, {&b.Open, k.Open}, {&b.Close, k.Close}, {&b.Volume, k.Volume}} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return model.PriceBar{}, errors.Wrapf(err, "binance: kline %s at %d", market, k.OpenTime)
		}
		*f.dst = v
	}
	return b, nil
}

// Price returns the last traded price of market.
func (f *BinanceFeed) Price(ctx context.Context, market string) (float64, error) {
	prices, err := f.client.NewListPricesService().Symbol(market).Do(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "binance: ticker %s", market)
	}
	for _, p := range prices {
		if p.Symbol == market {
			v, err := strconv.ParseFloat(p.Price, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "binance: ticker %s price %q", market, p.Price)
			}
			return v, nil
		}
	}
	return 0, errors.Errorf("binance: no ticker for %s", market)
}
