package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cache-gateway/middleware/cache"
	"cache-gateway/middleware/cache/application"
	cacheinfra "cache-gateway/middleware/cache/infra"
	"cache-gateway/middleware/ratelimit"
	"cache-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	// Exemplo: cache + rate limit montados direto no seu webserver (sem upstream HTTP)
	store := infra.NewStore(5, 10*time.Second)
	c := cacheinfra.NewTTLCache(cacheinfra.WithSweepEvery(time.Minute))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)
	c.StartJanitor(ctx)

	svc := application.FetchService{
		Key:        "example:clock",
		DefaultTTL: 5 * time.Second,
		Fetcher: func(ctx context.Context) (any, error) {
			time.Sleep(200 * time.Millisecond)
			return map[string]any{"generatedAt": time.Now().UTC().Format(time.RFC3339Nano)}, nil
		},
	}

	mux := http.NewServeMux()
	limit := ratelimit.Middleware(ratelimit.Options{
		Store:              store,
		KeyHeader:          "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor: true,
		Logger:             logger,
	})
	cache.NewHandler(c, svc, logger).Register(mux, limit, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50}))
	ratelimit.RegisterAdmin(mux, ratelimit.AdminOptions{Buckets: store})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
