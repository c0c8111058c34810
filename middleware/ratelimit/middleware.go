package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"cache-gateway/middleware/ratelimit/application"
	"cache-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// DefaultKeyHeader é o header de identidade usado quando Options.KeyHeader é vazio.
const DefaultKeyHeader = "X-Api-Key"

type KeyFunc func(r *http.Request) string

type Options struct {
	Store              domain.Admitter
	Stats              domain.StatsStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	RetryAfter         time.Duration
	// ExposeKey adiciona X-RateLimit-Key (debug).
	ExposeKey bool
	Logger    *zap.Logger
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware aplica o token bucket por chave.
//
// Sempre envia X-RateLimit-Limit e X-RateLimit-Remaining. Ao negar responde
// RejectStatus (429) com corpo JSON e Retry-After em segundos.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyHeader == "" {
		opts.KeyHeader = DefaultKeyHeader
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			dec := svc.Decide(domain.Key(key))

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:       domain.Key(key),
					Allowed:   dec.Allowed,
					Remaining: dec.Remaining,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				})
				if err != nil {
					opts.Logger.Warn("rate limit stats record failed", zap.Error(err))
				}
			}

			h := w.Header()
			if opts.ExposeKey {
				h.Set("X-RateLimit-Key", key)
			}
			if dec.Limit > 0 {
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
			}
			h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))

			if !dec.Allowed {
				opts.Logger.Debug("rate limited",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Duration("retryAfter", dec.RetryAfter),
				)
				h.Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				writeJSON(w, opts.RejectStatus, errorBody{Error: http.StatusText(opts.RejectStatus)})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
