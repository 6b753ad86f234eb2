package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/api"
	"github.com/Kerhoff/wishlistd/internal/config"
	"github.com/Kerhoff/wishlistd/internal/handlers"
	"github.com/Kerhoff/wishlistd/internal/realtime"
	"github.com/Kerhoff/wishlistd/internal/repository"
	"github.com/Kerhoff/wishlistd/internal/repository/memory"
	"github.com/Kerhoff/wishlistd/internal/repository/postgres"
	"github.com/Kerhoff/wishlistd/internal/service"
	"github.com/Kerhoff/wishlistd/internal/telegram"
	"github.com/Kerhoff/wishlistd/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	users     repository.UserRepository
	wishlists repository.WishlistRepository
	items     repository.ItemRepository
	ledger    repository.LedgerStore
	close     func() error
}

func openRepositories(ctx context.Context, cfg *config.Config, l *logrus.Logger) (*repositories, error) {
	if cfg.StorageDriver == config.StorageMemory {
		l.Warn("Using in-memory storage; data is lost on restart")
		store := memory.New()
		return &repositories{
			users:     store.Users(),
			wishlists: store.Wishlists(),
			items:     store.Items(),
			ledger:    store.Ledger(),
			close:     func() error { return nil },
		}, nil
	}

	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		users:     postgres.NewUserRepository(db.DB),
		wishlists: postgres.NewWishlistRepository(db.DB),
		items:     postgres.NewItemRepository(db.DB),
		ledger:    postgres.NewLedgerStore(db.DB),
		close:     db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.WithField("storage", cfg.StorageDriver).Infof("Starting %s...", cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, l)
	if err != nil {
		l.Fatalf("Failed to open storage: %v", err)
	}
	defer repos.close()

	// Realtime
	dispatcher := realtime.NewDispatcher(realtime.NewRegistry(), l, realtime.NewMetrics(prometheus.DefaultRegisterer))

	// Service layer
	svc := service.New(l, repos.users, repos.wishlists, repos.items, repos.ledger, dispatcher, service.Options{
		SecretKey: cfg.SecretKey,
		TokenTTL:  cfg.TokenTTL,
		Metrics:   service.NewMetrics(prometheus.DefaultRegisterer),
	})

	// Telegram bot is optional; without it owners get no notifications.
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("wishlists", handlers.NewWishlistsHandler(svc, l))

		go svc.StartOwnerNotifier(ctx, bot.Notify)
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		l.Info("TELEGRAM_TOKEN not set, owner notifications disabled")
	}

	apiServer := api.NewServer(svc, dispatcher, l, api.Options{
		AppName:     cfg.AppName,
		CORSOrigins: cfg.CORSOrigins,
		Conn: realtime.ConnOptions{
			SendBuffer:   cfg.WSSendBuffer,
			WriteTimeout: cfg.WSWriteTimeout,
			PingInterval: cfg.WSPingInterval,
		},
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serve := func(name string, srv *http.Server) {
		l.Infof("%s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("%s error: %v", name, err)
			stop()
		}
	}
	go serve("HTTP server", httpServer)
	go serve("Metrics server", metricsServer)

	l.Infof("%s started successfully", cfg.AppName)

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	apiServer.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown: %v", err)
	}

	l.Infof("%s stopped", cfg.AppName)
}
