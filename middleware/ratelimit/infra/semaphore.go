package infra

import (
	"context"
	"sync"

	"cache-gateway/middleware/ratelimit/domain"

	"golang.org/x/sync/semaphore"
)

type semaphorePool struct {
	sem *semaphore.Weighted
}

// NewSemaphorePool cria um pool de `max` vagas sobre x/sync/semaphore.
func NewSemaphorePool(max int) domain.SlotPool {
	return &semaphorePool{sem: semaphore.NewWeighted(int64(max))}
}

func (p *semaphorePool) Acquire(ctx context.Context) (func(), bool) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	// Release a mais faz o semaphore entrar em pânico; o release é idempotente.
	var once sync.Once
	return func() { once.Do(func() { p.sem.Release(1) }) }, true
}
