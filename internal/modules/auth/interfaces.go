package auth

import (
	"context"

	"learnhub/internal/domain"
	"learnhub/internal/modules/refreshtoken"
)

// UserRepository is the part of the user store the auth service uses.
// Find methods return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// SessionManager is the refresh-token lifecycle.
type SessionManager interface {
	Issue(ctx context.Context, userID int64, meta refreshtoken.Metadata, ttlDays int) (string, error)
	Validate(ctx context.Context, raw string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, raw string, meta refreshtoken.Metadata) (*refreshtoken.TokenPair, error)
	RevokeByID(ctx context.Context, id string) (string, error)
	RevokeAllForUser(ctx context.Context, userID int64) error
	ListActiveSessions(ctx context.Context, userID int64) ([]domain.RefreshToken, error)
}

var _ SessionManager = (*refreshtoken.Manager)(nil)
