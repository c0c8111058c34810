package application

import (
	"context"
	"errors"
	"time"

	"cache-gateway/middleware/cache/domain"
)

const DefaultTTL = 60 * time.Second

// NoExpiry pede que o payload fique no cache sem prazo (ttl=0 explícito no /data).
const NoExpiry time.Duration = -1

// FetchService é o caso de uso "fetch-and-cache": devolve o payload de Key do
// cache ou o busca via Fetch e o guarda por ttl.
type FetchService struct {
	Cache      domain.Cache
	Fetcher    domain.Fetcher
	Key        string
	DefaultTTL time.Duration
}

type Result struct {
	Data any
	// Cached indica que a request foi atendida sem esperar um fetch.
	Cached bool
	TTL    time.Duration
}

// Fetch usa DefaultTTL quando ttl == 0; ttl < 0 (NoExpiry) grava sem prazo.
// Erros do Fetcher voltam sem alteração.
func (s FetchService) Fetch(ctx context.Context, ttl time.Duration) (Result, error) {
	if s.Key == "" {
		return Result{}, domain.ErrMissingKey
	}
	if s.Cache == nil || s.Fetcher == nil {
		return Result{}, errors.New("fetch service: cache and fetcher are required")
	}
	switch {
	case ttl < 0:
		ttl = NoExpiry
	case ttl == 0:
		ttl = s.DefaultTTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
	}

	v, hit, err := s.Cache.Load(ctx, s.Key, ttl, s.Fetcher)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: v, Cached: hit, TTL: ttl}, nil
}

// Invalidate remove a chave informada, ou Key se vazia. Retorna a chave removida.
func (s FetchService) Invalidate(key string) string {
	if key == "" {
		key = s.Key
	}
	s.Cache.Del(key)
	return key
}
