package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Upstream lento para ver o single-flight do gateway na mão:
//
//	UPSTREAM_URL=http://localhost:8082/todos LOG_FORMAT=console go run ./cmd/gateway
//	for i in $(seq 20); do curl -s localhost:8080/data & done; wait
//
// O contador "calls" deve subir 1 por ciclo de TTL, não 20.
func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	delay := 2 * time.Second
	if v := os.Getenv("DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			delay = d
		}
	}
	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	var calls atomic.Int64
	http.HandleFunc("GET /todos", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		logger.Info("upstream hit", zap.Int64("calls", n), zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId":    1,
			"id":        1,
			"title":     "delectus aut autem",
			"completed": false,
			"calls":     n,
		})
	})
	http.HandleFunc("GET /fail", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	logger.Info("upstream-lento listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
