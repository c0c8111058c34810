package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cache-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis, compartilhados
// entre instâncias do gateway.
//
// Layout (prefixo padrão "ratelimit:stats"):
//
//	{prefix}:total              allowed/denied (cumulativo, sem TTL)
//	{prefix}:minute:YYYYMMDDhhmm allowed/denied por minuto (com TTL)
//	{prefix}:route              "METHOD /path|allowed", "METHOD /path|denied"
//	{prefix}:key:{key}          allowed/denied/remaining (somente com trackKeys)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl vale para a série por minuto e para os hashes por chave.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) TotalKey() string { return s.prefix + ":total" }
func (s *RedisStatsStore) RouteKey() string { return s.prefix + ":route" }

func (s *RedisStatsStore) MinuteKey(at time.Time) string {
	return s.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (s *RedisStatsStore) KeyKey(k domain.Key) string { return s.prefix + ":key:" + string(k) }

// Record envia todos os incrementos num único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := fieldDenied
	if ev.Allowed {
		field = fieldAllowed
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), field, 1)

	if s.bucket == "minute" {
		mk := s.MinuteKey(at)
		pipe.HIncrBy(ctx, mk, field, 1)
		s.expire(ctx, pipe, mk)
	}

	if route := routeOf(ev); route != "" {
		pipe.HIncrBy(ctx, s.RouteKey(), route+"|"+field, 1)
	}

	if s.trackKeys && strings.TrimSpace(string(ev.Key)) != "" {
		kk := s.KeyKey(ev.Key)
		pipe.HIncrBy(ctx, kk, field, 1)
		pipe.HSet(ctx, kk, "remaining", ev.Remaining)
		s.expire(ctx, pipe, kk)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats record: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Total lê o hash cumulativo.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.TotalKey()).Result()
	if err != nil {
		return Counters{}, fmt.Errorf("redis stats total: %w", err)
	}
	return countersFromHash(vals), nil
}

// StatsSnapshot monta o mesmo dump do MemoryStatsStore a partir dos hashes de
// total e rota. ByKey fica de fora: exigiria SCAN no prefixo.
func (s *RedisStatsStore) StatsSnapshot(ctx context.Context) (StatsSnapshot, error) {
	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, s.TotalKey())
	routeCmd := pipe.HGetAll(ctx, s.RouteKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return StatsSnapshot{}, fmt.Errorf("redis stats snapshot: %w", err)
	}

	out := StatsSnapshot{
		Total:   countersFromHash(totalCmd.Val()),
		ByRoute: make(map[string]Counters),
	}
	for f, raw := range routeCmd.Val() {
		route, field, ok := strings.Cut(f, "|")
		if !ok {
			continue
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		c := out.ByRoute[route]
		switch field {
		case fieldAllowed:
			c.Allowed += n
		case fieldDenied:
			c.Denied += n
		}
		out.ByRoute[route] = c
	}
	return out, nil
}

func countersFromHash(vals map[string]string) Counters {
	var c Counters
	c.Allowed, _ = strconv.ParseInt(vals[fieldAllowed], 10, 64)
	c.Denied, _ = strconv.ParseInt(vals[fieldDenied], 10, 64)
	return c
}

// routeOf é "METHOD /path"; vazio quando o evento não veio de HTTP.
func routeOf(ev domain.StatsEvent) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
}
