package infra

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"cache-gateway/middleware/cache/domain"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// TTLCache é um cache chave/valor em memória com expiração por entrada e
// coalescência de misses concorrentes (single-flight).
//
// A expiração é preguiçosa: uma entrada vencida só sai do mapa quando é lida,
// ou quando Sweep roda (opcional, via StartJanitor).
//
// Corrida entre Set/Del e um GetOrFetch em andamento: vence a escrita do fetch
// quando ele completa (last-write-wins para quem termina por último).
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// sf é o registro de fetches em voo: no máximo um por chave.
	sf singleflight.Group

	now          func() time.Time
	fetchTimeout time.Duration
	sweepEvery   time.Duration

	hits        atomic.Int64
	misses      atomic.Int64
	fetches     atomic.Int64
	fetchErrors atomic.Int64
	inflight    atomic.Int64
}

// entry é imutável depois de criada; Set troca a entrada inteira.
type entry struct {
	value     any
	expiresAt time.Time // zero => sem expiração
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type Option func(*TTLCache)

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFetchTimeout limita cada fetch. Estourar o prazo conta como falha do fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *TTLCache) { c.fetchTimeout = d }
}

// WithSweepEvery liga a varredura periódica de entradas vencidas (StartJanitor).
func WithSweepEvery(d time.Duration) Option {
	return func(c *TTLCache) { c.sweepEvery = d }
}

func NewTTLCache(opts ...Option) *TTLCache {
	c := &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.Cache = (*TTLCache)(nil)

// Get retorna o valor se presente e não expirado. Entrada vencida é removida.
func (c *TTLCache) Get(key string) (any, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return v, ok
}

func (c *TTLCache) lookup(key string) (any, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expired(now) {
		return e.value, true
	}

	c.mu.Lock()
	// re-checa: a chave pode ter sido regravada entre os locks
	if cur, ok := c.entries[key]; ok && cur.expired(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil, false
}

// Set insere ou sobrescreve. ttl <= 0 => sem expiração.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Del remove a chave; no-op se ausente.
func (c *TTLCache) Del(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Keys lista as chaves mantidas, em ordem. Pode incluir chaves já vencidas que
// ninguém leu ainda; quem precisa de exatidão confere com Get.
func (c *TTLCache) Keys() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	c.mu.RUnlock()

	slices.Sort(out)
	return out
}

// Len tem a mesma aproximação de Keys.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrFetch retorna a entrada viva de key ou popula via fetch.
//
// Misses concorrentes para a mesma chave compartilham um único fetch: todos
// recebem o mesmo valor ou o mesmo erro. Sucesso grava com ttl antes de o
// fetch sair do registro; falha não grava nada e a próxima chamada tenta de novo.
//
// O fetch roda desacoplado do cancelamento de ctx (outros chamadores podem
// estar esperando). Se ctx encerrar, apenas este chamador desiste.
func (c *TTLCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch domain.Fetcher) (any, error) {
	v, _, err := c.Load(ctx, key, ttl, fetch)
	return v, err
}

// Load conta exatamente um hit ou um miss por chamada.
func (c *TTLCache) Load(ctx context.Context, key string, ttl time.Duration, fetch domain.Fetcher) (any, bool, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Inc()
		return v, true, nil
	}
	c.misses.Inc()

	ch := c.sf.DoChan(key, func() (any, error) {
		// um fetch anterior pode ter terminado entre o miss e o registro
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		c.inflight.Inc()
		defer c.inflight.Dec()
		c.fetches.Inc()

		fetchCtx := context.WithoutCancel(ctx)
		if c.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.fetchTimeout)
			defer cancel()
		}

		v, err := safeFetch(fetchCtx, fetch)
		if err != nil {
			c.fetchErrors.Inc()
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, false, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// safeFetch converte pânico do fetcher em erro: o singleflight repropagaria o
// pânico numa goroutine própria, derrubando o processo.
func safeFetch(ctx context.Context, fetch domain.Fetcher) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", domain.ErrFetchPanic, r)
		}
	}()
	return fetch(ctx)
}

func (c *TTLCache) Stats() domain.Stats {
	return domain.Stats{
		Keys:        c.Len(),
		Inflight:    c.inflight.Load(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Fetches:     c.fetches.Load(),
		FetchErrors: c.fetchErrors.Load(),
	}
}

// Sweep remove todas as entradas vencidas e retorna quantas saíram.
func (c *TTLCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor roda Sweep a cada sweepEvery até ctx encerrar.
// Sem WithSweepEvery não faz nada (só expiração preguiçosa).
func (c *TTLCache) StartJanitor(ctx DoneContext) {
	if c.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(c.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context.
type DoneContext interface {
	Done() <-chan struct{}
}
