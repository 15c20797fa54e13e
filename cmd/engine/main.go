package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/joho/godotenv/autoload"

	"github.com/nvkrylov/tvchart-session/internal/config"
	"github.com/nvkrylov/tvchart-session/internal/credentials"
	"github.com/nvkrylov/tvchart-session/internal/domain"
	"github.com/nvkrylov/tvchart-session/internal/metadataclient"
	"github.com/nvkrylov/tvchart-session/internal/metrics"
	"github.com/nvkrylov/tvchart-session/internal/notify"
	"github.com/nvkrylov/tvchart-session/internal/storage"
	"github.com/nvkrylov/tvchart-session/internal/transport"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[Main] Received shutdown signal")
		cancel()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	logger.Info("starting", "env", cfg.Env, "symbol", cfg.Chart.Symbol)

	db, err := storage.Connect(storage.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	sink := storage.NewPostgresSink(db, logger)

	var alerts *notify.TelegramSink
	if cfg.Telegram.BotToken != "" {
		alerts, err = notify.NewTelegramSink(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			log.Fatalf("Failed to initialize telegram sink: %v", err)
		}
		logger.Info("telegram alerting enabled")
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, alerting disabled")
	}

	cookieCache, err := credentials.NewCache(cfg.Credentials.CachePath, cfg.Credentials.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential cache: %v", err)
	}
	bundle, found, err := cookieCache.Load()
	if err != nil {
		log.Fatalf("Failed to load cached credentials: %v", err)
	}
	if !found {
		log.Fatal("No cached credentials found; run the cookie bootstrap step first")
	}

	cookieSource := credentials.FromRecords(bundle.Cookies)
	httpClient, err := credentials.BuildHTTPClient(ctx, cookieSource)
	if err != nil {
		log.Fatalf("Failed to build http client: %v", err)
	}
	metaClient := metadataclient.New(httpClient)

	registry := prometheus.NewRegistry()
	recorder := metrics.New(registry)
	go serveMetrics(cfg.MetricsAddr, registry, logger)

	client, err := transport.New(ctx, transport.Config{
		URL:         cfg.Transport.WSURL,
		IdleTimeout: cfg.Transport.IdleTimeout,
		BufferSize:  cfg.Transport.BufferSize,
	}, logger, recorder)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	if err := runHandshake(ctx, client, metaClient, bundle.AuthToken, cfg.Chart); err != nil {
		log.Fatalf("Handshake failed: %v", err)
	}

	events := client.Subscribe()
	go consumeEvents(ctx, cfg.Chart.Symbol, events, sink, logger)
	go consumeStudyErrors(ctx, client.StudyErrors(), alerts, logger)

	if err := client.Run(ctx); err != nil {
		logger.Error("session terminated", "err", err)
		if alerts != nil {
			alerts.NotifyCriticalError(err.Error())
		}
	}
}

func runHandshake(ctx context.Context, client *transport.Client, meta *metadataclient.Client, authToken string, chart config.ChartConfig) error {
	if err := client.Controller.Authenticate(authToken); err != nil {
		return err
	}
	if err := client.Controller.OpenChart(); err != nil {
		return err
	}
	const seriesID = "sds_1"
	if err := client.Controller.Resolve(chart.Symbol, seriesID); err != nil {
		return err
	}
	if err := client.Controller.CreateSeries(seriesID, chart.Timeframe, chart.BarsRange); err != nil {
		return err
	}
	if chart.IndicatorID == "" {
		return nil
	}
	studyMeta, err := meta.GetStudyMetadata(ctx, chart.IndicatorID, chart.Version)
	if err != nil {
		return err
	}
	return client.Controller.AddStudy("st1", studyMeta, nil)
}

// consumeEvents is the subscriber goroutine spec.md §1 requires TickSink
// writes to run from — never the transport reader goroutine.
func consumeEvents(ctx context.Context, symbol string, events <-chan domain.UpdateEvent, sink *storage.PostgresSink, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if len(event.OHLC) > 0 {
				if err := sink.SaveBars(ctx, symbol, event.OHLC); err != nil {
					logger.Error("save bars failed", "err", err)
				}
			}
			for studyID, rows := range event.Indicators {
				if err := sink.SaveIndicatorRows(ctx, studyID, rows); err != nil {
					logger.Error("save indicator rows failed", "study_id", studyID, "err", err)
				}
			}
		}
	}
}

func consumeStudyErrors(ctx context.Context, errs <-chan domain.StudyErrorEvent, alerts *notify.TelegramSink, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-errs:
			if !ok {
				return
			}
			logger.Warn("study error", "study_id", ev.StudyID, "reason", ev.Reason)
			if alerts != nil {
				if err := alerts.NotifyStudyError(ev); err != nil {
					logger.Error("telegram notify failed", "err", err)
				}
			}
		}
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}
