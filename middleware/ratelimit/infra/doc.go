// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Store: token bucket por chave usando golang.org/x/time/rate, com refill no acesso
//   - NewSemaphorePool: limite de concorrência usando golang.org/x/sync/semaphore
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões allow/deny
package infra
