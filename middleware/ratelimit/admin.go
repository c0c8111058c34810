package ratelimit

import (
	"context"
	"net/http"

	"cache-gateway/middleware/ratelimit/domain"
	"cache-gateway/middleware/ratelimit/infra"
)

// StatsReader é implementado por infra.MemoryStatsStore e infra.RedisStatsStore.
type StatsReader interface {
	StatsSnapshot(ctx context.Context) (infra.StatsSnapshot, error)
}

// StatsResetter é opcional; habilita POST /buckets/stats/reset.
type StatsResetter interface {
	Reset()
}

type AdminOptions struct {
	Buckets domain.BucketInspector
	// Stats é opcional; sem ele /buckets/stats responde 404.
	Stats StatsReader
}

// RegisterAdmin monta os endpoints de introspecção (uso local/dev):
//
//	GET  /buckets        chave -> {tokens, capacity, lastRefill}
//	POST /buckets/clear  descarta todos os buckets
//	GET  /buckets/stats  contadores allow/deny
//	POST /buckets/stats/reset  zera os contadores (se o store suportar)
func RegisterAdmin(mux *http.ServeMux, opts AdminOptions) {
	mux.HandleFunc("GET /buckets", func(w http.ResponseWriter, r *http.Request) {
		snap := opts.Buckets.Snapshot()
		out := make(map[string]domain.BucketState, len(snap))
		for k, v := range snap {
			out[string(k)] = v
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /buckets/clear", func(w http.ResponseWriter, r *http.Request) {
		opts.Buckets.ClearAll()
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
	})

	mux.HandleFunc("GET /buckets/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.Stats == nil {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "stats disabled"})
			return
		}
		snap, err := opts.Stats.StatsSnapshot(r.Context())
		if err != nil {
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("POST /buckets/stats/reset", func(w http.ResponseWriter, r *http.Request) {
		rs, ok := opts.Stats.(StatsResetter)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "stats reset not supported"})
			return
		}
		rs.Reset()
		writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
	})
}
