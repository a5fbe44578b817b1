package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/api"
	"github.com/cyberfolio/folio-core/cache"
	"github.com/cyberfolio/folio-core/config"
	"github.com/cyberfolio/folio-core/contact"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/ratelimit"
	"github.com/cyberfolio/folio-core/relay"
	"github.com/cyberfolio/folio-core/resilience"
	"github.com/cyberfolio/folio-core/sanitize"
	"github.com/cyberfolio/folio-core/telemetry"
	"github.com/cyberfolio/folio-core/ticker"
	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 5 * time.Second
	coingeckoKeyHdr  = "x-cg-demo-api-key"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	logger  logger.Logger
	redis   redis.UniversalClient
	store   cache.Cache
	limiter *ratelimit.Limiter
	prices  *ticker.Service
	contact *contact.Service
	closers []func() error
}

func connectRedis(ctx context.Context, log logger.Logger, cfg config.Redis) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.URL.Text())
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	masked, _ := sanitize.MaskURL(cfg.URL.Text())
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", masked)
	}
	log.Info("connected to redis at %s", masked)
	return client, nil
}

func newApp(ctx context.Context, log logger.Logger, cfg config.Config) (*app, error) {
	a := &app{logger: log}

	flushReports, err := telemetry.InitErrorReporting(cfg.Telemetry.SentryDSN.Text(), cfg.Telemetry.Environment)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		return flushReports(context.Background())
	})

	var rateStore ratelimit.Store = ratelimit.NewMemoryStore()
	a.store = cache.NewInMemory(ctx, cache.WithExpires(cfg.Ticker.TTL.D()))
	if cfg.Redis.Enabled() {
		client, err := connectRedis(ctx, log, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		a.store = cache.NewComposite(a.store, cache.NewRedis(client, cache.WithPrefix(cfg.Redis.Prefix), cache.WithExpires(cfg.Ticker.TTL.D())))
		rateStore = ratelimit.NewRedisStore(client, cfg.Redis.Prefix)
	}
	a.closers = append(a.closers, a.store.Close)

	a.limiter = ratelimit.New(rateStore, cfg.RateLimit.Limit, cfg.RateLimit.Window.D(), ratelimit.WithLogger(log.WithPrefix("[ratelimit]")))
	a.closers = append(a.closers, a.limiter.Close)

	var tickerOpts []api.Option
	if key := cfg.Ticker.APIKey.Text(); key != "" {
		tickerOpts = append(tickerOpts, api.WithHeader(coingeckoKeyHdr, key))
	}
	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig(), log)
	source := ticker.NewClient(log, cfg.Ticker.Endpoint, cfg.Ticker.Symbols, breaker, tickerOpts...)
	a.prices = ticker.NewService(log, source, cache.NewRequestCache(a.store, log), cfg.Ticker.TTL.D())

	var sender contact.Sender
	if cfg.Relay.Configured() {
		sender = relay.New(log, cfg.Relay.Config)
	} else {
		log.Warn("email relay is not configured, contact submissions will be refused")
	}
	var contactOpts []contact.Option
	if cfg.Telemetry.SentryDSN != "" {
		contactOpts = append(contactOpts, contact.WithErrorReporter(telemetry.ReportError))
	}
	a.contact = contact.NewService(log, a.limiter, sender, contact.Config{
		TemplateID:          cfg.Relay.TemplateID,
		AutoReplyTemplateID: cfg.Relay.AutoReplyTemplateID,
		ReplyTo:             cfg.Relay.ReplyTo,
	}, contactOpts...)
	return a, nil
}

// Close waits for background email and releases resources in reverse order.
func (a *app) Close() error {
	a.contact.Wait()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
