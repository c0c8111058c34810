// Package ratelimit fornece adapters HTTP (net/http) para rate limit por token
// bucket e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (token bucket, semáforo, stats), detalhes de infraestrutura
//   - ratelimit (este pacote): middlewares HTTP, extração de chave, headers de cota e admin
//
// Fluxo:
//
//  1. Extrai a chave do cliente (header X-Api-Key, XFF opcional, IP)
//  2. Pede a decisão para a camada application (refill preguiçoso + consumo de 1 token)
//  3. Escreve X-RateLimit-Limit / X-RateLimit-Remaining
//  4. Se bloqueado, responde 429 com {"error": "Too Many Requests"} e Retry-After
//  5. Se permitido, chama o próximo handler
//
// As variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_CAPACITY, RATE_WINDOW, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
