// Package main - Entry point for the carrier tariff server
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	tariffhcl "carrier-tariff/adapters/hcl"
	"carrier-tariff/adapters/storage"
	"carrier-tariff/api"
	"carrier-tariff/core/carrier"
	"carrier-tariff/core/quote"
	"carrier-tariff/internal/config"
	"carrier-tariff/internal/logging"
)

const version = "0.1.0"

func main() {
	envErr := godotenv.Load()

	configPath := flag.String("config", getEnv("TARIFF_CONFIG", "tariff.json"), "config file")
	flag.Parse()

	if err := run(*configPath, envErr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, envErr error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer logging.Sync()
	if envErr != nil {
		logging.Debug("no .env file found, using environment variables")
	}

	var store *storage.Store
	if cfg.Snapshots.Directory != "" {
		if store, err = storage.NewStore(cfg.Snapshots.Directory); err != nil {
			return err
		}
	}

	registry, err := buildRegistry(cfg, store)
	if err != nil {
		return err
	}

	ctx := context.Background()
	loadCarriers(ctx, registry, store)

	opts, err := cfg.Quote.Options()
	if err != nil {
		return err
	}
	apiServer := api.NewServer(registry, quote.NewCalculator(registry, opts), version)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", version),
			zap.Strings("carriers", registry.Names()))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				logging.Info("reloading tariffs")
				if err := registry.ReloadAll(ctx); err != nil {
					logging.Warn("some tariffs failed to reload", zap.Error(err))
				}
				continue
			}

			logging.Info("shutting down", zap.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := srv.Shutdown(shutdownCtx)
			cancel()
			return err
		}
	}
}

// buildRegistry registers one file loader per configured carrier; with a
// snapshot store every successfully loaded tariff is also archived
func buildRegistry(cfg *config.Config, store *storage.Store) (*carrier.Registry, error) {
	registry := carrier.NewRegistry()
	for _, c := range cfg.Carriers {
		var loader carrier.Loader = tariffhcl.FileLoader{Path: c.TablePath}
		if store != nil {
			loader = storage.ArchivingLoader{Source: loader, Store: store, Carrier: c.Name}
		}
		if err := registry.Register(c.Name, loader); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// loadCarriers loads every carrier. A carrier whose file fails at startup
// falls back to its latest snapshot when one exists.
func loadCarriers(ctx context.Context, registry *carrier.Registry, store *storage.Store) {
	for _, name := range registry.Names() {
		if _, err := registry.Reload(ctx, name); err == nil || store == nil {
			continue
		}
		sheet, err := store.Latest(ctx, name)
		if err != nil {
			logging.ForCarrier(name).Warn("no tariff available, carrier disabled until reload", zap.Error(err))
			continue
		}
		registry.Install(name, sheet)
		logging.ForCarrier(name).Warn("serving last stored snapshot",
			zap.String("source", sheet.Source),
			zap.String("fingerprint", sheet.Table.Fingerprint().Short()))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
