package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/p2prate/config"
	"github.com/vadiminshakov/p2prate/internal/clients"
	"github.com/vadiminshakov/p2prate/internal/metrics"
	"github.com/vadiminshakov/p2prate/internal/services/pricer"
	"github.com/vadiminshakov/p2prate/internal/services/rate"
	"github.com/vadiminshakov/p2prate/internal/web"
)

// Proxy is the running rate proxy: refresh loop plus HTTP surface.
type Proxy struct {
	Config config.Config

	cache     *rate.Cache
	tracker   *rate.ErrorTracker
	scheduler *rate.Scheduler
	server    *web.Server
	logger    *zap.Logger
}

// NewProxy wires all components from conf.
func NewProxy(conf config.Config, logger *zap.Logger) (*Proxy, error) {
	client := clients.NewP2PClient(
		logger.Named("p2p"),
		clients.WithEndpoint(conf.Endpoint),
		clients.WithUserAgent(conf.UserAgent),
		clients.WithTimeout(conf.RequestTimeout),
		clients.WithMerchantCheck(conf.MerchantCheck),
	)
	legPricer := pricer.NewP2PPricer(client, conf.Trim, logger.Named("pricer"))

	calc, err := rate.NewCalculator(legPricer, conf.Source, conf.Target, conf.Margin, logger.Named("calculator"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calculator")
	}

	rateMetrics := metrics.NewRateMetrics()
	tracker := rate.NewErrorTracker(conf.ErrorThreshold, conf.ErrorCooldown, logger.Named("errors"))
	cache := rate.NewCache(calc, tracker, conf.CacheTTL, logger.Named("cache"), rate.WithObserver(rateMetrics))
	scheduler := rate.NewScheduler(cache, conf.RefreshInterval, conf.WarmupRetries, logger.Named("scheduler"))

	handlers := web.NewHandlers(cache, calc, logger.Named("http"))
	server := web.NewServer(conf.Addr(), handlers, rateMetrics.Handler(), logger.Named("http"))

	return &Proxy{
		Config:    conf,
		cache:     cache,
		tracker:   tracker,
		scheduler: scheduler,
		server:    server,
		logger:    logger,
	}, nil
}

// Run serves HTTP and refreshes the rate until ctx is cancelled.
func (p *Proxy) Run(ctx context.Context) error {
	defer p.tracker.Stop()

	p.logger.Info("starting rate proxy",
		zap.Stringer("source", p.Config.Source),
		zap.Stringer("target", p.Config.Target),
		zap.String("margin", p.Config.Margin.String()),
		zap.Duration("cache_ttl", p.Config.CacheTTL),
		zap.Duration("refresh_interval", p.Config.RefreshInterval),
		zap.Int("port", p.Config.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.server.Start(gctx)
	})
	g.Go(func() error {
		return p.scheduler.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		p.logger.Info("rate proxy stopped")
		return nil
	}

	return err
}
