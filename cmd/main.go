// Command p2prate serves a composite USDT P2P exchange rate (COP per VES by
// default) computed from Binance P2P advertisements, with a margin applied.
//
// Usage:
//
//	p2prate --config config.yaml
//	p2prate (defaults, overridable with environment variables or .env)
//
// Environment variables (all optional):
//
//	PORT, P2P_ENDPOINT, MARGIN, CACHE_TTL, REFRESH_INTERVAL, LOG_LEVEL,
//	SOURCE_FIAT, SOURCE_SIDE, TARGET_FIAT, TARGET_SIDE
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/config"
	"github.com/vadiminshakov/p2prate/internal"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	proxy, err := internal.NewProxy(conf, logger)
	if err != nil {
		logger.Fatal("failed to create proxy", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := proxy.Run(ctx); err != nil {
		logger.Error("proxy stopped with error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl

	return cfg.Build()
}
