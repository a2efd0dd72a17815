package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
//
// Cost 12 is 2^12 rounds, roughly 250ms per hash on a modern server.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords would be
// silently truncated, so Hash rejects them instead.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the plaintext does not
// match the stored hash.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// BOUNDED HASHING:
// bcrypt is deliberately CPU-heavy. Every request already runs on its
// own goroutine, so a slow hash never blocks other handlers, but a burst
// of logins could still pin every core. slots is a counting semaphore:
// a hash must take a slot before it runs, and waits (or gives up when
// the request context is cancelled) while all slots are busy.
type PasswordService struct {
	cost  int
	slots chan struct{}
}

// NewPasswordService creates a PasswordService. A cost outside bcrypt's
// valid range falls back to DefaultCost; maxConcurrent ≤ 0 means one
// slot per CPU.
func NewPasswordService(cost, maxConcurrent int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	return &PasswordService{
		cost:  cost,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// NewPasswordServiceForTest creates a PasswordService with a low bcrypt
// cost (use bcrypt.MinCost, 4) so tests in other packages stay fast.
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost, slots: make(chan struct{}, 4)}
}

// Hash hashes the plaintext with bcrypt. The result embeds the salt and
// cost ($2a$12$...), so it is stored as-is.
func (p *PasswordService) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
// Returns nil on match and ErrPasswordMismatch (wrapped) if they differ.
// An empty hash (account without a password) never matches.
func (p *PasswordService) Verify(ctx context.Context, hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// acquire blocks until a hashing slot is free or ctx is done.
func (p *PasswordService) acquire(ctx context.Context) (func(), error) {
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("auth: waiting for hash slot: %w", ctx.Err())
	}
}
