package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/auth"
	"github.com/UkralStul/starter-repo/internal/config"
	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/httpapi"
	"github.com/UkralStul/starter-repo/internal/logging"
	"github.com/UkralStul/starter-repo/internal/metrics"
	"github.com/UkralStul/starter-repo/internal/procedure"
	"github.com/UkralStul/starter-repo/internal/router"
	"github.com/UkralStul/starter-repo/internal/server"
	"github.com/UkralStul/starter-repo/internal/storage"
	"github.com/UkralStul/starter-repo/internal/storage/inmemory"
	"github.com/UkralStul/starter-repo/internal/storage/pgxstore"
	"github.com/UkralStul/starter-repo/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	storageType := flag.String("storage", cfg.Storage, "Storage type (in-memory, postgres or pgx)")
	flag.Parse()
	cfg.Storage = *storageType

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		logrus.Fatalf("failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting server with %s storage", cfg.Storage)
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	m := metrics.New()
	layer := procedure.NewLayer(procedure.WithLogger(log), procedure.WithObserver(m))
	app := router.New(layer, store)

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	go cleanupLimiters(ctx, limiter, log)

	handler, err := server.NewHandler(server.Deps{
		App:      app,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Metrics:  m,
		Limiter:  limiter,
		Log:      log,
	})
	if err != nil {
		log.Fatalf("failed to build handler: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("listening on http://localhost:%s/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.Storage, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return postgres.New(cfg.DatabaseURL, log)
	case config.StoragePGX:
		return pgxstore.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	default:
		store := inmemory.New()
		// Заполним данными для локального запуска
		if err := fillWithMockData(ctx, store, log); err != nil {
			return nil, err
		}
		return store, nil
	}
}

func cleanupLimiters(ctx context.Context, rl *httpapi.RateLimiter, log logrus.FieldLogger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(10 * time.Minute); n > 0 {
				log.WithField("removed", n).Debug("idle rate limiters removed")
			}
		}
	}
}

func fillWithMockData(ctx context.Context, s storage.Storage, log logrus.FieldLogger) error {
	for _, name := range []string{"Первый пост", "Hello, starter"} {
		post, err := s.CreatePost(ctx, &domain.Post{Name: &name})
		if err != nil {
			return err
		}
		log.WithField("post_id", post.ID).Debug("mock post created")
	}
	log.Info("Mock data filled successfully")
	return nil
}
