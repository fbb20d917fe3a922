package refreshtoken

import (
	"context"

	"learnhub/internal/domain"
)

// Store persists refresh-token records. Lookups return (nil, nil) when the
// record is absent; any returned error is treated as an infrastructure failure.
type Store interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	FindByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	// FindActiveByUser filters on revoked only. Expired records are included.
	FindActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error)
	RevokeByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	// RevokeIfActive flips revoked from false to true and reports whether this
	// call performed the flip.
	RevokeIfActive(ctx context.Context, id string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64) error
	UpdateHash(ctx context.Context, id, hash string) error
}
