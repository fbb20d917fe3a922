// Package hasher produces and checks one-way salted digests of secrets
// (passwords and refresh tokens).
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashingFailure wraps any failure of the underlying primitive.
var ErrHashingFailure = errors.New("hashing failure")

// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
const maxBcryptInput = 72

type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher with the given work factor. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Cost() int { return b.cost }

// Hash returns a salted digest of secret. Two calls with the same secret
// return different digests.
func (b *Bcrypt) Hash(ctx context.Context, secret string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	type result struct {
		digest []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := bcrypt.GenerateFromPassword(prepare(secret), b.cost)
		done <- result{digest: d, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: %v", ErrHashingFailure, r.err)
		}
		return string(r.digest), nil
	}
}

// Compare reports whether secret matches digest. A mismatch is (false, nil);
// a malformed digest is an ErrHashingFailure.
func (b *Bcrypt) Compare(ctx context.Context, secret, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(digest), prepare(secret))
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, ctx.Err())
	case err := <-done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
		}
	}
}

// prepare pre-digests long secrets so every byte contributes to the hash.
func prepare(secret string) []byte {
	if len(secret) <= maxBcryptInput {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}
