package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"cache-gateway/middleware/cache/domain"
	"cache-gateway/middleware/cache/infra"
)

func TestFetchService_FirstFetchThenCached(t *testing.T) {
	calls := 0
	svc := FetchService{
		Cache:   infra.NewTTLCache(),
		Key:     "sample:todo",
		Fetcher: func(context.Context) (any, error) {
			calls++
			return "payload", nil
		},
	}

	res, err := svc.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cached || res.Data != "payload" || res.TTL != DefaultTTL {
		t.Fatalf("unexpected first result: %+v", res)
	}

	res, err = svc.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cached || res.Data != "payload" {
		t.Fatalf("expected cached result, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
}

type ttlRecordingCache struct {
	domain.Cache
	ttl time.Duration
}

func (c *ttlRecordingCache) Load(ctx context.Context, key string, ttl time.Duration, fetch domain.Fetcher) (any, bool, error) {
	c.ttl = ttl
	return c.Cache.Load(ctx, key, ttl, fetch)
}

func TestFetchService_TTLSelection(t *testing.T) {
	fetch := func(context.Context) (any, error) { return 1, nil }

	c := &ttlRecordingCache{Cache: infra.NewTTLCache()}
	svc := FetchService{Cache: c, Key: "k", Fetcher: fetch, DefaultTTL: 30 * time.Second}
	if _, err := svc.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ttl != 30*time.Second {
		t.Fatalf("expected configured default ttl, got %s", c.ttl)
	}

	svc.Invalidate("")
	if _, err := svc.Fetch(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ttl != 5*time.Second {
		t.Fatalf("expected explicit ttl, got %s", c.ttl)
	}

	svc.Invalidate("")
	if _, err := svc.Fetch(context.Background(), NoExpiry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ttl >= 0 {
		t.Fatalf("expected no-expiry ttl to reach the cache, got %s", c.ttl)
	}
}

func TestFetchService_PropagatesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	svc := FetchService{
		Cache:   infra.NewTTLCache(),
		Key:     "k",
		Fetcher: func(context.Context) (any, error) { return nil, boom },
	}

	if _, err := svc.Fetch(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestFetchService_MissingKey(t *testing.T) {
	svc := FetchService{Cache: infra.NewTTLCache(), Fetcher: func(context.Context) (any, error) { return 1, nil }}
	if _, err := svc.Fetch(context.Background(), 0); !errors.Is(err, domain.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestFetchService_InvalidateDefaultsToServiceKey(t *testing.T) {
	c := infra.NewTTLCache()
	c.Set("sample:todo", 1, 0)
	c.Set("other", 2, 0)
	svc := FetchService{Cache: c, Key: "sample:todo"}

	if got := svc.Invalidate(""); got != "sample:todo" {
		t.Fatalf("expected default key, got %q", got)
	}
	if got := svc.Invalidate("other"); got != "other" {
		t.Fatalf("expected explicit key, got %q", got)
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("expected both keys removed, got %d", n)
	}
}

func TestFetchService_ColdRequestCountsOneMiss(t *testing.T) {
	c := infra.NewTTLCache()
	svc := FetchService{
		Cache:   c,
		Key:     "sample:todo",
		Fetcher: func(context.Context) (any, error) { return 1, nil },
	}

	if _, err := svc.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := c.Stats()
	if st.Misses != 1 || st.Hits != 0 || st.Fetches != 1 {
		t.Fatalf("expected misses=1 hits=0 fetches=1, got %+v", st)
	}

	if _, err := svc.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st = c.Stats()
	if st.Misses != 1 || st.Hits != 1 || st.Fetches != 1 {
		t.Fatalf("expected misses=1 hits=1 fetches=1, got %+v", st)
	}
}

func TestFetchService_NoExpiryKeepsPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := infra.NewTTLCache(infra.WithClock(func() time.Time { return now }))
	calls := 0
	svc := FetchService{
		Cache:   c,
		Key:     "k",
		Fetcher: func(context.Context) (any, error) {
			calls++
			return calls, nil
		},
	}

	if _, err := svc.Fetch(context.Background(), NoExpiry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(365 * 24 * time.Hour)
	res, err := svc.Fetch(context.Background(), NoExpiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cached || calls != 1 {
		t.Fatalf("expected payload kept without expiry, got %+v calls=%d", res, calls)
	}
}
