package repository

import (
	"context"
	"errors"
	"time"

	"learnhub/internal/domain"

	"gorm.io/gorm"
)

// RefreshTokenRepository is the relational refresh-token store.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RefreshTokenRepository) FindByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) FindActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	out := make([]domain.RefreshToken, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ?", userID, false).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *RefreshTokenRepository) RevokeByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	err := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{"revoked": true, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// RevokeIfActive is a conditional update; only one concurrent caller sees a
// non-zero row count.
func (r *RefreshTokenRepository) RevokeIfActive(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{"revoked": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "updated_at": time.Now().UTC()}).Error
}

func (r *RefreshTokenRepository) UpdateHash(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]any{"token_hash": hash, "updated_at": time.Now().UTC()}).Error
}

// DeleteStale hard-deletes records that expired, or were revoked, before
// cutoff. Used by the retention job only.
func (r *RefreshTokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = ? AND updated_at < ?)", cutoff, true, cutoff).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
