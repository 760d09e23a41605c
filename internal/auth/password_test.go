package auth

import (
	"context"
	"testing"
)

func TestPasswordHashAndCompare(t *testing.T) {
	h := NewPasswordHasher(4, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatalf("hash equals plaintext")
	}

	if err := h.Compare(ctx, hash, "hunter2hunter2"); err != nil {
		t.Fatalf("Compare() with correct password: %v", err)
	}
	if err := h.Compare(ctx, hash, "wrong-password"); err == nil {
		t.Fatalf("Compare() accepted a wrong password")
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	h := NewPasswordHasher(4, 2)
	ctx := context.Background()

	a, err := h.Hash(ctx, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := h.Hash(ctx, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password are identical")
	}
}

func TestPasswordHashHonorsContext(t *testing.T) {
	h := NewPasswordHasher(4, 1)

	// Hold the only slot so the next Acquire has to wait on the context.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquiring slot: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "hunter2hunter2"); err == nil {
		t.Fatalf("Hash() succeeded with a cancelled context and no free slot")
	}
}

func TestNewPasswordHasherDefaults(t *testing.T) {
	h := NewPasswordHasher(0, 0)
	if h.cost != DefaultBcryptCost {
		t.Fatalf("cost = %d, want %d", h.cost, DefaultBcryptCost)
	}
}
