package ratelimit

import (
	"context"
	"net/http"
	"time"

	"cache-gateway/middleware/ratelimit/application"
	"cache-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita quantas requisições atravessam o handler ao mesmo
// tempo. Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewSemaphorePool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := svc.Do(r.Context(), func(context.Context) error {
				next.ServeHTTP(w, r)
				return nil
			})
			if err != nil {
				writeJSON(w, opts.RejectStatus, errorBody{Error: http.StatusText(opts.RejectStatus)})
			}
		})
	}
}
