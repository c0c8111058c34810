// Package infra contém as implementações concretas do cache:
//
//   - TTLCache: mapa em memória com TTL preguiçoso + single-flight (golang.org/x/sync/singleflight)
//   - HTTPFetcher: fonte externa JSON usada como domain.Fetcher
package infra
