package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Decision é o resultado de uma tentativa de admissão.
//
// Negar não é erro: Allowed=false é um resultado normal (vira 429 na borda HTTP).
type Decision struct {
	Allowed bool
	// Remaining é o piso dos tokens restantes após a decisão (0 quando negado).
	Remaining int
	// Limit é a capacidade configurada do bucket.
	Limit int
	// RetryAfter é o tempo estimado até existir 1 token. 0 quando permitido.
	RetryAfter time.Duration
}

// Admitter decide, por chave, se uma requisição entra agora.
//
// Admit nunca bloqueia: refill e consumo acontecem numa única etapa atômica.
type Admitter interface {
	Admit(Key) Decision
}

// BucketState é a visão somente-leitura de um bucket (introspecção/admin).
type BucketState struct {
	Tokens     float64   `json:"tokens"`
	Capacity   int       `json:"capacity"`
	LastRefill time.Time `json:"lastRefill"`
}

// BucketInspector expõe as operações administrativas sobre os buckets.
type BucketInspector interface {
	Snapshot() map[Key]BucketState
	ClearAll()
}
