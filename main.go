package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfg "github.com/example/pressbridge/internal/config"
	"github.com/example/pressbridge/internal/logging"
	"github.com/example/pressbridge/internal/store"
	"github.com/example/pressbridge/internal/token"
	"github.com/example/pressbridge/internal/wpcompat"
)

type App struct {
	Store       store.Store
	API         *wpcompat.Service
	Log         *zap.Logger
	rateLimiter *RateLimiter
	trustProxy  bool
}

func openStore(ctx context.Context, c *cfg.Config) (store.Store, error) {
	switch c.DBAdapter {
	case "sqlite":
		return store.OpenSQLite(ctx, c.SQLiteFile)
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres config error: %w", err)
		}
		return store.OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite)", c.DBAdapter)
}

func newApp(c *cfg.Config, st store.Store, logger *zap.Logger) *App {
	tokens := token.New(c.JwtSecret, c.PublishUsername, c.PublishPassword)
	api := wpcompat.NewService(st, tokens, logger, wpcompat.Options{
		PublicURL:      c.PublicURL,
		PublisherAgent: c.PublisherAgent,
		PostPath:       c.PostPath,
		BatchMaxItems:  c.BatchMaxItems,
	})
	return &App{
		Store:       st,
		API:         api,
		Log:         logger,
		rateLimiter: NewRateLimiter(c.TokenRatePerMinute),
		trustProxy:  c.TrustProxy,
	}
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(c.LogLevel, c.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	st, err := openStore(ctx, c)
	if err != nil {
		logger.Fatal("store init", zap.String("adapter", c.DBAdapter), zap.Error(err))
	}
	if !c.Configured() {
		const msg = "JWT_SECRET, PUBLISH_USERNAME or PUBLISH_PASSWORD missing; authenticated endpoints will answer 500"
		if c.Production() {
			logger.Error(msg)
		} else {
			logger.Warn(msg)
		}
	}

	app := newApp(c, st, logger)
	srv := &http.Server{
		Handler:      newRouter(app),
		Addr:         ":" + c.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", c.Port), zap.String("adapter", c.DBAdapter))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("server exited properly")
}
