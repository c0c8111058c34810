package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// Com Max=1 um /data lento segura a única vaga; o próximo desiste após
// AcquireTimeout com 503 JSON, e depois da liberação volta a entrar.
func TestConcurrencyMiddleware_RejectsWhileUpstreamIsBusy(t *testing.T) {
	unblock := make(chan struct{})
	entered := make(chan struct{}, 4)

	slowFetch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-unblock
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(slowFetch)

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/data", nil))
		first <- w.Code
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		close(unblock)
		t.Fatalf("first request never reached the handler")
	}

	// a vaga está ocupada: rejeição síncrona
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/data", nil))
	if w.Code != http.StatusServiceUnavailable {
		close(unblock)
		t.Fatalf("expected 503 while busy, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["error"] != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("expected JSON error body, got %q (err=%v)", w.Body.String(), err)
	}

	close(unblock)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", code)
	}

	// vaga liberada
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/data", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after release, got %d", w.Code)
	}
}

func TestConcurrencyMiddleware_DisabledWhenMaxZero(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 0})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected next handler to run untouched, got %d", w.Code)
	}
}

func TestConcurrencyMiddleware_SlotFreedAfterHandlerPanics(t *testing.T) {
	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1, AcquireTimeout: 10 * time.Millisecond})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/boom" {
				panic("handler bug")
			}
			w.WriteHeader(http.StatusOK)
		}),
	)

	func() {
		defer func() { _ = recover() }()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/boom", nil))
	}()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/data", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected slot to be released after panic, got %d", w.Code)
	}
}
