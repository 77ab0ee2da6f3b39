package core

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// HashPool bounds the number of bcrypt comparisons running at once so a burst
// of logins cannot starve the rest of the server of CPU.
type HashPool struct {
	sem *semaphore.Weighted
}

func NewHashPool(size int) *HashPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &HashPool{sem: semaphore.NewWeighted(int64(size))}
}

// Compare runs bcrypt.CompareHashAndPassword once a slot is free.
// The returned error is either ctx.Err() or bcrypt's own result.
func (p *HashPool) Compare(ctx context.Context, hash, plaintext []byte) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return bcrypt.CompareHashAndPassword(hash, plaintext)
}
