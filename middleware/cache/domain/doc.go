// Package domain define os contratos do cache com TTL: o Fetcher da fonte
// externa, a interface Cache e as estatísticas expostas.
//
// Não depende de net/http nem da implementação concreta (infra).
package domain
