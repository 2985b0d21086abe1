// cmd/backtest replays archived candles through the indicator engine and the
// crossover policy on a paper account, then prints every action and the P&L.
//
// Usage:
//
//	go run ./cmd/backtest --config=config.yaml --market=BTCUSDT --db=data/candles.db --fetch
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cryptosignal/config"
	"cryptosignal/internal/backtest"
	"cryptosignal/internal/execution"
	"cryptosignal/internal/logger"
	"cryptosignal/internal/marketdata"
	sqlitestore "cryptosignal/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	market := flag.String("market", "", "Instrument to replay (default: first configured)")
	dbPath := flag.String("db", "data/candles.db", "Path to the SQLite candle archive")
	fetch := flag.Bool("fetch", false, "Download missing candles from Binance into the archive first")
	from := flag.String("from", "", "Replay start date, YYYY-MM-DD (default: all archived bars)")
	flag.Parse()

	log := logger.Init("backtest", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	defer log.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	inst := cfg.Instruments[0]
	if *market != "" {
		found := false
		for _, in := range cfg.Instruments {
			if in.Market == *market {
				inst, found = in, true
				break
			}
		}
		if !found {
			log.Fatal("market not configured", zap.String("market", *market))
		}
	}

	var start time.Time
	if *from != "" {
		if start, err = time.Parse("2006-01-02", *from); err != nil {
			log.Fatal("bad --from", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatal("archive directory not created", zap.String("path", *dbPath), zap.Error(err))
	}
	archive, err := sqlitestore.Open(*dbPath, log)
	if err != nil {
		log.Fatal("archive open failed", zap.Error(err))
	}
	defer archive.Close()

	if *fetch {
		since := start
		last, err := archive.GetLastTimestamp(ctx, inst.Market, inst.Granularity)
		if err != nil {
			log.Fatal("archive query failed", zap.Error(err))
		}
		if last > 0 {
			since = time.Unix(last, 0).UTC()
		}
		feed := marketdata.NewBinanceFeed(execution.NewBinanceClient("", "", cfg.Exchange.Testnet), 1000)
		bars, err := feed.BarsSince(ctx, inst.Market, inst.Granularity, since)
		if err != nil {
			log.Fatal("candle download failed", zap.Error(err))
		}
		if err := archive.WriteBars(ctx, bars); err != nil {
			log.Fatal("archive write failed", zap.Error(err))
		}
		log.Info("archived candles", zap.Int("count", len(bars)), zap.Time("since", since))
	}

	bars, err := archive.ReadBars(ctx, inst.Market, inst.Granularity, start)
	if err != nil {
		log.Fatal("archive read failed", zap.Error(err))
	}
	log.Info("replaying", zap.String("market", inst.Market), zap.Int("bars", len(bars)))

	report, err := backtest.Run(ctx, bars, inst, backtest.Options{
		QuoteBalance: cfg.Paper.QuoteBalance,
		SlippageBps:  cfg.Paper.SlippageBps,
		MinBudget:    cfg.Exchange.MinBudget,
		Log:          log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)),
	})
	if err != nil {
		log.Fatal("backtest failed", zap.Error(err))
	}

	for _, step := range report.Actions() {
		log.Info("action",
			zap.Time("date", step.Date),
			zap.String("action", string(step.Action)),
			zap.Float64("close", step.Close),
			zap.Bool("filled", step.Filled),
			zap.Bool("stop_loss", step.StopLoss),
			zap.String("reason", step.Reason),
		)
	}
	if len(report.FailedIndicators) > 0 {
		log.Info("indicators skipped", zap.Strings("indicators", report.FailedIndicators))
	}
	log.Info("summary",
		zap.String("market", report.Market),
		zap.Int("bars", report.Bars),
		zap.Int("trades", report.Summary.TotalTrades),
		zap.Int("wins", report.Summary.Wins),
		zap.Int("losses", report.Summary.Losses),
		zap.Float64("realized_pnl", report.Summary.RealizedPnL),
		zap.Float64("unrealized_pnl", report.Summary.UnrealizedPnL),
		zap.Float64("quote_balance", report.QuoteBalance),
		zap.Float64("base_balance", report.BaseBalance),
	)
}
