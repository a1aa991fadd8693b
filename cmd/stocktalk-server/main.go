// Command stocktalk-server runs the stocktalk REST backend: user accounts,
// Alpaca paper trading, market data, and the stock-scoped social feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocktalk/internal/aggregate"
	"stocktalk/internal/brokerage"
	"stocktalk/internal/config"
	"stocktalk/internal/docstore"
	"stocktalk/internal/httpapi"
	"stocktalk/internal/identity"
	"stocktalk/internal/marketcache"
	"stocktalk/internal/secrets"
	"stocktalk/internal/social"
	"stocktalk/internal/util"
)

func main() {
	cfgPath := "config/stocktalk.yaml"
	if p := os.Getenv("STOCKTALK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	if err := run(cfg); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Secrets.Key == "" {
		return errors.New("secrets.key is not set: put a 64-character hex key in the config file or set STOCKTALK_SECRET_KEY")
	}
	box, err := secrets.NewBox(cfg.Secrets.Key)
	if err != nil {
		return fmt.Errorf("loading secret key (config secrets.key / STOCKTALK_SECRET_KEY): %w", err)
	}

	store, err := docstore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer store.Close()

	var cache *marketcache.Cache
	if cfg.Storage.DataDir != "" {
		cache = marketcache.New(cfg.Storage.DataDir)
		if symbols, err := cache.Symbols(); err == nil {
			log.Info("bar cache ready", "dir", cfg.Storage.DataDir, "symbols", len(symbols))
		}
	}

	agg := aggregate.NewWriter(store, 256, log)
	agg.Start()
	defer agg.Stop()

	srv := httpapi.NewServer(
		identity.NewService(store),
		brokerage.NewGateway(store, box, cache, cfg.Alpaca.BaseURL, cfg.Alpaca.DataURL, log),
		social.NewService(store, agg, log),
		cfg.Limits.SigninPerMin,
		log,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("stocktalk-server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
