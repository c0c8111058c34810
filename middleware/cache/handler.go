package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cache-gateway/middleware/cache/application"
	"cache-gateway/middleware/cache/domain"

	"go.uber.org/zap"
)

// Handler expõe o cache via HTTP (CRUD, listagem, stats e fetch-and-cache).
type Handler struct {
	Cache   domain.Cache
	Service application.FetchService
	Logger  *zap.Logger
}

func NewHandler(c domain.Cache, svc application.FetchService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Cache == nil {
		svc.Cache = c
	}
	return &Handler{Cache: c, Service: svc, Logger: logger}
}

// Register monta as rotas no mux. dataMW envolve apenas GET /data (o primeiro
// é o mais externo), ex: rate limit + limite de concorrência contra o upstream.
func (h *Handler) Register(mux *http.ServeMux, dataMW ...func(http.Handler) http.Handler) {
	var data http.Handler = http.HandlerFunc(h.Data)
	for i := len(dataMW) - 1; i >= 0; i-- {
		data = dataMW[i](data)
	}

	mux.Handle("GET /data", data)
	mux.HandleFunc("GET /invalidate", h.Invalidate)
	mux.HandleFunc("POST /cache", h.Create)
	mux.HandleFunc("GET /cache/{key}", h.Read)
	mux.HandleFunc("PUT /cache/{key}", h.Update)
	mux.HandleFunc("DELETE /cache/{key}", h.Delete)
	mux.HandleFunc("GET /keys", h.Keys)
	mux.HandleFunc("GET /stats", h.Stats)
}

type dataResponse struct {
	Cached bool  `json:"cached"`
	TTL    int64 `json:"ttl"`
	Data   any   `json:"data"`
}

// maxTTLSeconds é o maior ttl representável em time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Data: GET /data?ttl=N (segundos, padrão 60; ttl=0 não expira).
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	var ttl time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("ttl")); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || secs < 0 || secs > maxTTLSeconds {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "ttl must be an integer between 0 and " + strconv.FormatInt(maxTTLSeconds, 10)})
			return
		}
		ttl = time.Duration(secs) * time.Second
		if secs == 0 {
			ttl = application.NoExpiry
		}
	}

	res, err := h.Service.Fetch(r.Context(), ttl)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	secs := int64(0)
	if res.TTL > 0 {
		secs = int64(res.TTL / time.Second)
	}
	writeJSON(w, http.StatusOK, dataResponse{
		Cached: res.Cached,
		TTL:    secs,
		Data:   res.Data,
	})
}

func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	key := h.Service.Invalidate(r.URL.Query().Get("key"))
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": key})
}

type setRequest struct {
	Key   string  `json:"key"`
	Value any     `json:"value"`
	TTL   float64 `json:"ttl"`
}

type setResponse struct {
	OK  bool    `json:"ok"`
	Key string  `json:"key"`
	TTL float64 `json:"ttl"`
}

// Create: POST /cache {key, value, ttl}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		h.fail(w, r, domain.ErrMissingKey)
		return
	}
	h.set(w, req)
}

// Update: PUT /cache/{key} {value, ttl}. Mesmo efeito de Create.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Key = r.PathValue("key")
	h.set(w, req)
}

func (h *Handler) set(w http.ResponseWriter, req setRequest) {
	if req.TTL < 0 {
		req.TTL = 0
	}
	if req.TTL > float64(maxTTLSeconds) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ttl must be at most " + strconv.FormatInt(maxTTLSeconds, 10)})
		return
	}
	h.Cache.Set(req.Key, req.Value, time.Duration(req.TTL*float64(time.Second)))
	writeJSON(w, http.StatusOK, setResponse{OK: true, Key: req.Key, TTL: req.TTL})
}

// Read: GET /cache/{key}. Ausente/expirado => 404 {"found": false}.
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, ok := h.Cache.Get(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]bool{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "key": key, "value": v})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.Cache.Del(key)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": key})
}

func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"keys": h.Cache.Keys()})
}

// Stats: a contagem de chaves é aproximada (inclui vencidas não varridas).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// fail traduz a taxonomia de erros: entrada inválida (400), prazo (504),
// falha do upstream (502).
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingKey):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.Logger.Warn("upstream fetch timed out", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		// cliente desistiu; resposta provavelmente não será lida
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		h.Logger.Error("upstream fetch failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
