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

	"cache-gateway/middleware/cache"
	"cache-gateway/middleware/cache/application"
	cacheinfra "cache-gateway/middleware/cache/infra"
	"cache-gateway/middleware/ratelimit"
	"cache-gateway/middleware/ratelimit/domain"
	"cache-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}

	logger, err := newLogger(cfg.logFormat, cfg.logLevel)
	if err != nil {
		zap.NewExample().Fatal("logger error", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := cacheinfra.NewTTLCache(
		cacheinfra.WithFetchTimeout(cfg.upstreamTimeout),
		cacheinfra.WithSweepEvery(cfg.cacheSweepEvery),
	)
	c.StartJanitor(ctx)

	fetcher := cacheinfra.NewHTTPFetcher(cfg.upstreamURL, cfg.upstreamTimeout)
	svc := application.FetchService{
		Fetcher:    fetcher.Fetch,
		Key:        cfg.cacheKey,
		DefaultTTL: cfg.cacheDefaultTTL,
	}

	store := infra.NewStore(cfg.rateCapacity, cfg.rateWindow)
	store.StartJanitor(ctx)

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
	stats := statsFanout{memStats}
	// com Redis o admin lê os contadores compartilhados entre instâncias
	var adminStats ratelimit.StatsReader = memStats
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		redisStats := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		stats = append(stats, redisStats)
		adminStats = redisStats
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           newMux(cfg, c, svc, store, stats, adminStats, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", cfg.upstreamURL),
		zap.Duration("upstreamTimeout", cfg.upstreamTimeout),
		zap.String("cacheKey", cfg.cacheKey),
		zap.Duration("cacheDefaultTTL", cfg.cacheDefaultTTL),
		zap.Duration("cacheSweepEvery", cfg.cacheSweepEvery),
	)
	logger.Info("rate",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Int("capacity", cfg.rateCapacity),
		zap.Duration("window", cfg.rateWindow),
		zap.String("keyHeader", cfg.rateKeyHeader),
		zap.Bool("trustXFF", cfg.trustXFF),
	)
	logger.Info("rate-stats",
		zap.Bool("redis", cfg.rateStatsEnabled),
		zap.String("redisAddr", cfg.rateStatsRedisAddr),
		zap.String("bucket", cfg.rateStatsBucket),
		zap.Duration("ttl", cfg.rateStatsTTL),
		zap.Bool("trackKeys", cfg.rateStatsTrackKeys),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.concurrencyMax),
		zap.Duration("acquireTimeout", cfg.concurrencyTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMux monta todas as rotas do gateway.
func newMux(cfg config, c *cacheinfra.TTLCache, svc application.FetchService, store *infra.Store, stats domain.StatsStore, adminStats ratelimit.StatsReader, logger *zap.Logger) *http.ServeMux {
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.rateEnabled {
		limit = ratelimit.Middleware(ratelimit.Options{
			Store:              store,
			Stats:              stats,
			KeyHeader:          cfg.rateKeyHeader,
			TrustXForwardedFor: cfg.trustXFF,
			RejectStatus:       http.StatusTooManyRequests,
			RetryAfter:         cfg.retryAfter,
			ExposeKey:          cfg.exposeKey,
			Logger:             logger,
		})
	}
	concurrency := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "cache-gateway: /data /cache /keys /stats /open /limited /buckets\n")
	})
	mux.HandleFunc("GET /open", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "open\n")
	})
	mux.Handle("GET /limited", limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "limited ok\n")
	})))

	cache.NewHandler(c, svc, logger).Register(mux, limit, concurrency)
	ratelimit.RegisterAdmin(mux, ratelimit.AdminOptions{Buckets: store, Stats: adminStats})
	return mux
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
}

// statsFanout repassa cada evento para todos os stores (memória + Redis).
type statsFanout []domain.StatsStore

func (f statsFanout) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	return zc.Build()
}
