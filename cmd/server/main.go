package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/splitsquad/backend/internal/auth"
	"github.com/splitsquad/backend/internal/config"
	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/metrics"
	"github.com/splitsquad/backend/internal/middleware"
	"github.com/splitsquad/backend/internal/service"
	"github.com/splitsquad/backend/internal/storage"
	"github.com/splitsquad/backend/internal/storage/postgres"
	"github.com/splitsquad/backend/internal/storage/sqlite"
	"github.com/splitsquad/backend/pkg/api"
	"github.com/splitsquad/backend/pkg/logging"
)

const (
	tokenDuration   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()

	publisher := newPublisher(cfg, m)
	defer publisher.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, tokenDuration)

	svcCfg := service.Config{
		Store:     store,
		Publisher: publisher,
		Metrics:   m,
		InviteTTL: cfg.InviteTTL,
	}
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewUserServiceHandler(service.NewUserService(svcCfg), interceptors))
	mux.Handle(api.NewGroupServiceHandler(service.NewGroupService(svcCfg), interceptors))
	mux.Handle(api.NewExpenseServiceHandler(service.NewExpenseService(svcCfg), interceptors))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// h2c serves HTTP/2 without TLS for Connect and gRPC clients.
	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h2c.NewHandler(corsMiddleware(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.RunAddress, "driver", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.DatabaseDriver)
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.DatabaseDriver, "database", cfg.DBPath)
		return store, nil
	}
}

func newPublisher(cfg *config.Config, m *metrics.Metrics) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	slog.Info("Publishing group events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, func(n int, err error) {
		m.EventsDropped.Add(float64(n))
		slog.Warn("Failed to deliver group events", "count", n, "error", err)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
