package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string    `gorm:"column:email;size:255;not null;uniqueIndex:idx_users_email"`
	Name         string    `gorm:"column:name;size:100;not null"`
	PasswordHash *string   `gorm:"column:password_hash"`
	Provider     string    `gorm:"column:provider;size:20;not null;default:local"`
	ProviderID   *string   `gorm:"column:provider_id"`
	AvatarURL    *string   `gorm:"column:avatar_url"`
	Roles        string    `gorm:"column:roles;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

func toDomainUser(m userModel) (*domain.User, error) {
	var raw []string
	if m.Roles != "" {
		if err := json.Unmarshal([]byte(m.Roles), &raw); err != nil {
			return nil, fmt.Errorf("decode roles of user %d: %w", m.ID, err)
		}
	}
	roles, err := domain.ParseRoles(raw)
	if err != nil {
		return nil, fmt.Errorf("decode roles of user %d: %w", m.ID, err)
	}

	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: deref(m.PasswordHash),
		Provider:     domain.AuthProvider(m.Provider),
		ProviderID:   deref(m.ProviderID),
		AvatarURL:    deref(m.AvatarURL),
		Roles:        roles,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func toUserModel(u *domain.User) (userModel, error) {
	roles, err := encodeRoles(u.Roles)
	if err != nil {
		return userModel{}, err
	}
	return userModel{
		ID:           u.ID,
		Email:        strings.TrimSpace(strings.ToLower(u.Email)),
		Name:         u.Name,
		PasswordHash: nullable(u.PasswordHash),
		Provider:     string(u.Provider),
		ProviderID:   nullable(u.ProviderID),
		AvatarURL:    nullable(u.AvatarURL),
		Roles:        roles,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}, nil
}

func encodeRoles(roles domain.Roles) (string, error) {
	b, err := json.Marshal(roles.Strings())
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(b), nil
}

// Create inserts the user and fills generated fields. A taken email fails
// with ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m, err := toUserModel(u)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	created, err := toDomainUser(m)
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

// FindByEmail returns (nil, nil) when no account uses the address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainUser(m)
}

// FindByID returns (nil, nil) when the account does not exist.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainUser(m)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

// List returns users ordered by id with simple offset pagination.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []userModel
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*domain.User, 0, len(rows))
	for _, m := range rows {
		u, err := toDomainUser(m)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, nil
}

func (r *UserRepository) UpdateRoles(ctx context.Context, id int64, roles domain.Roles) error {
	encoded, err := encodeRoles(roles)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"roles": encoded, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
