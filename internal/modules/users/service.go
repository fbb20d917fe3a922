package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/logging"
)

const maxPageSize = 100

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, int64, error)
	UpdateRoles(ctx context.Context, id int64, roles domain.Roles) error
}

type Service struct {
	repo Repository
	log  logging.Logger
}

func NewService(repo Repository, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{repo: repo, log: log}
}

// List returns one page of accounts and the total count.
func (s *Service) List(ctx context.Context, page, limit int) ([]*domain.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.List(ctx, limit, (page-1)*limit)
}

func (s *Service) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// UpdateRoles replaces the roles of userID. Existing access tokens keep
// their old roles until the next refresh.
func (s *Service) UpdateRoles(ctx context.Context, actorID, userID int64, raw []string) (*domain.User, error) {
	roles, err := domain.ParseRoles(raw)
	if err != nil {
		return nil, err
	}

	u, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.UpdateRoles(roles); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRoles(ctx, u.ID, u.Roles); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update roles: %w", err)
	}

	s.log.Info(ctx, "user roles updated", "actor_id", actorID, "user_id", u.ID, "roles", u.Roles.Strings())
	return u, nil
}
