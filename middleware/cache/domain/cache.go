package domain

import (
	"context"
	"errors"
	"time"
)

// ErrMissingKey é o erro de entrada (MissingInput): a chave é obrigatória.
var ErrMissingKey = errors.New("key required")

// ErrFetchPanic embrulha o pânico de um Fetcher; vira falha comum do fetch.
var ErrFetchPanic = errors.New("fetch panicked")

// Fetcher busca o valor na fonte externa em caso de miss.
//
// O erro retornado chega sem alteração a todos os chamadores que aguardavam o
// mesmo fetch, e nunca é cacheado.
type Fetcher func(ctx context.Context) (any, error)

// Cache é o contrato do cache com TTL + single-flight.
//
// ttl <= 0 significa "sem expiração". Leituras de chave ausente/expirada não
// são erro: retornam (nil, false).
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Del(key string)
	Keys() []string
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (any, error)
	// Load é GetOrFetch informando se a entrada já estava viva (hit).
	Load(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (value any, hit bool, err error)
	Stats() Stats
}

// Stats é aproximado: Keys inclui entradas expiradas ainda não varridas.
type Stats struct {
	Keys        int   `json:"keys"`
	Inflight    int64 `json:"inflight"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Fetches     int64 `json:"fetches"`
	FetchErrors int64 `json:"fetchErrors"`
}
