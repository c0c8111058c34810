package infra

import (
	"math"
	"sync"
	"time"

	"cache-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store é um token bucket por chave (x/time/rate) com refill preguiçoso:
// nenhum timer por bucket, os tokens são recalculados a cada Admit.
//
// Cada bucket tem capacidade `capacity` e recupera `capacity` tokens a cada `window`.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*bucket
	capacity     int
	window       time.Duration
	limit        rate.Limit
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

// bucket guarda o limiter e o instante do último refill observado.
// mu torna refill+consumo+leitura do saldo uma única etapa.
type bucket struct {
	mu         sync.Mutex
	lim        *rate.Limiter
	lastRefill time.Time
	// evicted marca um bucket já fora do mapa (Cleanup/ClearAll); quem o
	// pegou antes da remoção precisa buscar o bucket atual.
	evicted bool
}

type StoreOption func(*Store)

// WithIdleTTL define após quanto tempo sem tráfego um bucket pode ser descartado
// pelo Cleanup. Nunca é menor que a janela de refill.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithClock troca a fonte de tempo (testes). O relógio deve ser monotônico.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(capacity int, window time.Duration, opts ...StoreOption) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Second
	}
	s := &Store{
		entries:      make(map[string]*bucket),
		capacity:     capacity,
		window:       window,
		limit:        rate.Limit(float64(capacity) / window.Seconds()),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Capacity() int { return s.capacity }
func (s *Store) Window() time.Duration { return s.window }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Admit implementa domain.Admitter.
func (s *Store) Admit(key domain.Key) domain.Decision {
	for {
		if dec, ok := s.admitOn(s.bucketFor(string(key))); ok {
			return dec
		}
	}
}

// admitOn consome de b; ok=false se b foi removido enquanto esperava o lock.
func (s *Store) admitOn(b *bucket) (domain.Decision, bool) {
	now := s.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.evicted {
		return domain.Decision{}, false
	}

	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)
	b.lastRefill = now

	dec := domain.Decision{Allowed: allowed, Limit: s.capacity}
	if allowed {
		dec.Remaining = int(math.Floor(math.Max(tokens, 0)))
		return dec, true
	}
	dec.RetryAfter = s.untilOneToken(tokens)
	return dec, true
}

// untilOneToken estima quanto falta para o saldo chegar a 1.
func (s *Store) untilOneToken(tokens float64) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	perToken := float64(s.window) / float64(s.capacity)
	return time.Duration(math.Ceil(missing * perToken))
}

func (s *Store) bucketFor(key string) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.entries[key]; ok {
		return b
	}

	// bucket novo nasce cheio (burst == capacity)
	b := &bucket{lim: rate.NewLimiter(s.limit, s.capacity), lastRefill: s.now()}
	s.entries[key] = b
	return b
}

// Snapshot implementa domain.BucketInspector.
// Tokens é o saldo no instante do último refill (não projeta refill futuro).
func (s *Store) Snapshot() map[domain.Key]domain.BucketState {
	s.mu.Lock()
	buckets := make(map[string]*bucket, len(s.entries))
	for k, b := range s.entries {
		buckets[k] = b
	}
	s.mu.Unlock()

	out := make(map[domain.Key]domain.BucketState, len(buckets))
	for k, b := range buckets {
		b.mu.Lock()
		out[domain.Key(k)] = domain.BucketState{
			Tokens:     b.lim.TokensAt(b.lastRefill),
			Capacity:   s.capacity,
			LastRefill: b.lastRefill,
		}
		b.mu.Unlock()
	}
	return out
}

// ClearAll descarta todos os buckets; a próxima requisição de cada chave começa cheia.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.entries {
		b.mu.Lock()
		b.evicted = true
		b.mu.Unlock()
	}
	s.entries = make(map[string]*bucket)
}

// Cleanup remove buckets ociosos há pelo menos max(idleTTL, window).
// Um bucket assim já estaria cheio, então recriá-lo não muda nenhuma decisão.
func (s *Store) Cleanup() int {
	idle := s.idleTTL
	if idle < s.window {
		idle = s.window
	}
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.entries {
		b.mu.Lock()
		if !b.lastRefill.After(cutoff) {
			b.evicted = true
			delete(s.entries, k)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
