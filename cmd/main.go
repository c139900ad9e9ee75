package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/bot"
	"betledger/internal/config"
	"betledger/internal/handlers"
	"betledger/internal/ledger"
	"betledger/internal/logger"
	"betledger/internal/metrics"
	"betledger/internal/service"
	"betledger/internal/storage"
	"betledger/internal/tracker"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, cfg.Storage, lg)
	if err != nil {
		lg.Fatal("storage_open_failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer kv.Close()

	store := ledger.NewStore(ctx, storage.NewLedgerPersister(kv, cfg.Storage.LedgerKey), lg)
	tr := tracker.New(ctx, store, storage.NewNoteStore(kv, cfg.Storage.NoteKey), lg)
	tr.SetSaveTimeout(cfg.SaveTimeout)
	lg.Info("ledger_ready", zap.Int("bets", store.Len()), zap.String("driver", cfg.Storage.Driver))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		lg.Fatal("metrics_register_failed", zap.Error(err))
	}
	metricsSrv := metrics.StartServer(cfg.MetricsPort, kv.Ping, lg)

	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		tgBot, err = bot.New(cfg.Telegram, tr, lg)
		if err != nil {
			lg.Fatal("bot_create_failed", zap.Error(err))
		}
		go tgBot.Start()
	} else {
		lg.Warn("bot_disabled", zap.String("reason", "TELEGRAM_BOT_TOKEN not set"))
	}

	syncWorker := service.NewSyncWorker(tr, cfg.SyncInterval, lg)
	if tgBot != nil {
		syncWorker.SetNotifier(service.NewNotificationService(tgBot.Telebot(), cfg.Telegram.OwnerID, lg))
	}
	syncWorker.Start()
	defer syncWorker.Stop()

	srv := handlers.NewServer(tr, lg, auth.Middleware(cfg.Telegram.Token, cfg.Telegram.OwnerID, lg), cfg.WebDir).
		WithCORS(cfg.CORSOrigins)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("server_starting", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting_down")

	if tgBot != nil {
		tgBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server_shutdown_failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		lg.Error("metrics_shutdown_failed", zap.Error(err))
	}
}
