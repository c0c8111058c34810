// Package cache fornece o adapter HTTP (net/http) do cache com TTL + single-flight.
//
// Camadas, no mesmo formato do pacote ratelimit:
//
//   - domain: contrato Cache, Fetcher, Stats e erros
//   - application: caso de uso fetch-and-cache (FetchService)
//   - infra: TTLCache (singleflight) e HTTPFetcher (upstream JSON)
//   - cache (este pacote): rotas HTTP e tradução de erros para status
//
// Rotas montadas por Handler.Register:
//
//	GET    /data?ttl=N      payload do upstream, cacheado por N segundos (padrão 60)
//	GET    /invalidate?key= remove a chave (padrão: a chave do FetchService)
//	POST   /cache           {key, value, ttl}
//	GET    /cache/{key}     200 {found, key, value} ou 404 {found: false}
//	PUT    /cache/{key}     {value, ttl}
//	DELETE /cache/{key}
//	GET    /keys
//	GET    /stats
package cache
