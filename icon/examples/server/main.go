// Command server runs the icons plugin behind a chi router.
//
//	CONFIG_PATH=icon/examples/server/config go run ./icon/examples/server
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/icons/config"
	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/env_mode"
	"github.com/leeforge/icons/icon"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/storage"
	"github.com/leeforge/icons/plugin"
	"github.com/leeforge/icons/runtime"
	"github.com/leeforge/icons/utils"
	"go.uber.org/zap"
)

type settings struct {
	Server struct {
		Addr            string        `mapstructure:"addr" default:":8080"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" default:"15s"`
	} `mapstructure:"server"`
	Logging  logging.Config     `mapstructure:"logging"`
	Storage  storage.Config     `mapstructure:"storage"`
	Entities entity.StoreConfig `mapstructure:"entities"`
}

func main() {
	opts := config.DefaultConfigOptions()
	opts.AllowMissing = true
	cfg, err := config.NewConfig(opts)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var s settings
	if err := cfg.BindWithDefaults(&s); err != nil {
		log.Fatalf("bind config: %v", err)
	}

	logger := logging.NewLogger(s.Logging)
	logging.SetGlobal(logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, s, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, s settings, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := storage.New(s.Storage)
	if err != nil {
		return err
	}
	entities, err := entity.Open(ctx, s.Entities)
	if err != nil {
		return err
	}
	defer entities.Close()

	router := chi.NewRouter()
	router.Use(logging.RecoveryMiddleware(logger), logging.HTTPMiddleware(logger))

	rt := runtime.NewRuntime(runtime.Config{
		Router: router,
		Logger: logger,
		PluginConfig: func(name string) plugin.ConfigProvider {
			return plugin.NewPluginConfigEntry(name, true, cfg.Sub("plugins."+name))
		},
	})
	if err := rt.Services().Register(icon.ServiceEntityStore, entities); err != nil {
		return err
	}
	if err := rt.Services().Register(icon.ServiceBlobStore, blobs); err != nil {
		return err
	}
	if err := rt.Register(icon.New(nil)); err != nil {
		return err
	}
	if err := rt.Bootstrap(ctx); err != nil {
		return err
	}

	if env_mode.Mode() == env_mode.DevMode {
		if routes, err := utils.Routes(router); err == nil {
			logger.Debug("routes registered", zap.Strings("routes", routes))
		}
	}

	srv := &http.Server{
		Addr:              s.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", s.Server.Addr), zap.String("blobs", blobs.Name()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return rt.Shutdown(shutdownCtx)
}
