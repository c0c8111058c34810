package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cache-gateway/middleware/ratelimit/domain"
	"cache-gateway/middleware/ratelimit/infra"
)

func TestRegisterAdmin_DumpAndClearBuckets(t *testing.T) {
	store := infra.NewStore(10, time.Minute)
	store.Admit("k1")
	store.Admit("k1")
	store.Admit("k2")

	mux := http.NewServeMux()
	RegisterAdmin(mux, AdminOptions{Buckets: store})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buckets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var dump map[string]domain.BucketState
	if err := json.NewDecoder(w.Body).Decode(&dump); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if len(dump) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(dump))
	}
	if got := dump["k1"]; got.Capacity != 10 || got.Tokens < 7.99 || got.Tokens > 8.01 || got.LastRefill.IsZero() {
		t.Fatalf("unexpected k1 bucket: %+v", got)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/buckets/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on clear, got %d", w.Code)
	}
	if n := len(store.Snapshot()); n != 0 {
		t.Fatalf("expected no buckets after clear, got %d", n)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buckets/clear", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET clear, got %d", w.Code)
	}
}

func TestRegisterAdmin_Stats(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_ = stats.Record(context.Background(), domain.StatsEvent{Allowed: true, Method: "GET", Path: "/limited"})

	mux := http.NewServeMux()
	RegisterAdmin(mux, AdminOptions{Buckets: infra.NewStore(1, time.Second), Stats: stats})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buckets/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap infra.StatsSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap.Total.Allowed != 1 {
		t.Fatalf("expected 1 allowed, got %+v", snap.Total)
	}
}

func TestRegisterAdmin_StatsDisabled(t *testing.T) {
	mux := http.NewServeMux()
	RegisterAdmin(mux, AdminOptions{Buckets: infra.NewStore(1, time.Second)})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buckets/stats", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRegisterAdmin_StatsReset(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_ = stats.Record(context.Background(), domain.StatsEvent{Allowed: true, Method: "GET", Path: "/data"})

	mux := http.NewServeMux()
	RegisterAdmin(mux, AdminOptions{Buckets: infra.NewStore(1, time.Second), Stats: stats})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/buckets/stats/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := stats.Total(); got.Allowed != 0 {
		t.Fatalf("expected counters reset, got %+v", got)
	}
}

type failingReader struct{}

func (failingReader) StatsSnapshot(context.Context) (infra.StatsSnapshot, error) {
	return infra.StatsSnapshot{}, errors.New("redis down")
}

func TestRegisterAdmin_StatsReadErrorAndNoReset(t *testing.T) {
	mux := http.NewServeMux()
	RegisterAdmin(mux, AdminOptions{Buckets: infra.NewStore(1, time.Second), Stats: failingReader{}})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buckets/stats", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/buckets/stats/reset", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when reset is unsupported, got %d", w.Code)
	}
}
