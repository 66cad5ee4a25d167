package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/vovakirdan/hotowire-server/internal/app"
	"github.com/vovakirdan/hotowire-server/internal/config"
	"github.com/vovakirdan/hotowire-server/internal/log"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	bootLogger := log.New("info")
	cfg, path, err := config.Load(bootLogger, *configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", path).Msg("load config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)

	logger.Info().
		Str("addr", cfg.Addr).
		Str("ws_path", cfg.WSPath).
		Str("policy", cfg.HandoverPolicy).
		Msg("starting hotowire server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
