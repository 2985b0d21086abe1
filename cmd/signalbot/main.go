// cmd/signalbot evaluates every configured instrument on a fixed interval,
// trades the EMA crossover on Binance (or a paper account) and publishes
// each decision to Redis, InfluxDB, the WebSocket gateway and the notifiers.
//
// Usage:
//
//	go run ./cmd/signalbot --config=config.yaml --env=.env
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cryptosignal/config"
	"cryptosignal/internal/evaluator"
	"cryptosignal/internal/execution"
	"cryptosignal/internal/gateway"
	"cryptosignal/internal/logger"
	"cryptosignal/internal/marketdata"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/model"
	"cryptosignal/internal/notification"
	influxstore "cryptosignal/internal/store/influx"
	redisstore "cryptosignal/internal/store/redis"
	sqlitestore "cryptosignal/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	envPath := flag.String("env", ".env", "Optional .env file with secrets")
	flag.Parse()

	boot := logger.Init("signalbot", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		boot.Fatal("config load failed", zap.Error(err))
	}
	log := logger.Init("signalbot", logger.ParseLevel(cfg.LogLevel))
	defer log.Sync()
	log.Info("starting", zap.String("mode", cfg.Exchange.Mode), zap.Int("instruments", len(cfg.Instruments)))

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, reg, health, log)
	metricsSrv.Start()

	// ---- Exchange ----
	client := execution.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)
	feed := marketdata.NewBinanceFeed(client, marketdata.DefaultLimit)

	var placer model.OrderPlacer
	if cfg.Exchange.Mode == "live" {
		placer = execution.NewBinanceExecutor(client, log, cfg.Exchange.MinBudget)
		log.Warn("LIVE trading enabled", zap.Bool("testnet", cfg.Exchange.Testnet))
	} else {
		paper := execution.NewPaperExecutor(log, cfg.Paper.SlippageBps, cfg.Exchange.MinBudget)
		seen := make(map[string]bool)
		for _, in := range cfg.Instruments {
			if !seen[in.Quote()] {
				paper.Deposit(in.Quote(), cfg.Paper.QuoteBalance)
				seen[in.Quote()] = true
			}
		}
		placer = paper
	}

	// ---- Trade journal ----
	var journal model.TradeJournal
	switch cfg.Journal.Type {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			log.Fatal("journal directory not created", zap.String("path", cfg.Journal.Path), zap.Error(err))
		}
		j, err := execution.NewSQLiteJournal(cfg.Journal.Path, log)
		if err != nil {
			log.Fatal("journal init failed", zap.Error(err))
		}
		defer j.Close()
		journal = j
		health.StartLivenessChecker(ctx, nil, j.DB(), 30*time.Second)
	default:
		j, err := execution.NewCSVJournal(cfg.Journal.Dir)
		if err != nil {
			log.Fatal("journal init failed", zap.Error(err))
		}
		journal = j
	}
	health.SetJournalOK(true)

	deps := evaluator.Deps{
		Feed:    feed,
		Quoter:  feed,
		Placer:  placer,
		Journal: journal,
		Metrics: prom,
		Health:  health,
	}
	// ---- Candle archive (optional) ----
	if cfg.ArchivePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ArchivePath), 0o755); err != nil {
			log.Warn("archive directory not created, continuing without it", zap.String("path", cfg.ArchivePath), zap.Error(err))
		} else if archive, err := sqlitestore.Open(cfg.ArchivePath, log); err != nil {
			log.Warn("archive init failed, continuing without it", zap.Error(err))
		} else {
			defer archive.Close()
			deps.Archive = archive
		}
	}

	// ---- Redis state store (optional) ----
	if cfg.Redis.Addr != "" {
		health.SetRedisEnabled(true)
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		redisstore.InstrumentBreaker(cb, prom.RedisCircuitBreakerState, prom.RedisCircuitBreakerTrips, log)
		store, err := redisstore.Dial(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cb, log)
		if err != nil {
			log.Warn("redis init failed, continuing without snapshots", zap.Error(err))
		} else {
			defer store.Close()
			deps.States = store
			health.StartLivenessChecker(ctx, store.Client(), nil, 10*time.Second)
		}
	}

	// ---- InfluxDB signal sink (optional) ----
	if cfg.Influx.URL != "" {
		sink := influxstore.NewSignalSink(influxstore.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, log)
		defer sink.Close()
		deps.Sink = sink
	}

	// ---- Notifiers ----
	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.Telegram.Token != "" {
		tg, err := notification.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Warn("telegram init failed", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Webhook.URL, log))
	}
	deps.Notifier = notifiers

	// ---- Evaluator ----
	svc, err := evaluator.New(cfg.Instruments, deps, log)
	if err != nil {
		log.Fatal("evaluator init failed", zap.Error(err))
	}

	// ---- WebSocket gateway (optional) ----
	var gatewaySrv *http.Server
	if cfg.GatewayAddr != "" {
		hub := gateway.NewHub(svc.Registry(), log, prom.GatewayClients)
		defer hub.Close()
		svc.SetEvents(hub)

		mux := http.NewServeMux()
		gateway.RegisterRoutes(mux, hub)
		gatewaySrv = &http.Server{Addr: cfg.GatewayAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("gateway listening", zap.String("addr", cfg.GatewayAddr))
			if err := gatewaySrv.ListenAndServe(); err != http.ErrServerClosed {
				log.Error("gateway server error", zap.Error(err))
			}
		}()
	}

	sources, err := svc.Restore(ctx)
	if err != nil {
		log.Fatal("state restore failed", zap.Error(err))
	}
	for market, src := range sources {
		log.Info("state restored", zap.String("market", market), zap.String("source", src))
	}

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("evaluator stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if gatewaySrv != nil {
		gatewaySrv.Shutdown(shutdownCtx)
	}
	metricsSrv.Stop(shutdownCtx)
	log.Info("stopped")
}
