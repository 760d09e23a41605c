package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBcryptCost  = 12
	DefaultHashWorkers = 4
)

// PasswordHasher wraps bcrypt behind a weighted semaphore. Hashing at cost
// 12 takes hundreds of milliseconds of CPU, so the bound keeps a burst of
// auth requests from pinning every scheduler thread at once.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewPasswordHasher(cost, maxConcurrent int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultHashWorkers
	}
	return &PasswordHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring hash slot: %w", err)
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether password matches the stored hash.
func (h *PasswordHasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring hash slot: %w", err)
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
