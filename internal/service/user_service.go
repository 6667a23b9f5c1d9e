package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

var (
	ErrSelfDeactivateForbidden = errors.New("admin cannot deactivate self")
	ErrSelfDemoteForbidden     = errors.New("admin cannot change own role")
	ErrInvalidRole             = errors.New("invalid role")
)

type userListOptions struct {
	role     *model.UserRole
	isActive *bool
	keyword  *string
}

type UserFilter func(*userListOptions)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func ByRole(role model.UserRole) UserFilter {
	return func(opts *userListOptions) {
		r := role
		opts.role = &r
	}
}

func ByActive(active bool) UserFilter {
	return func(opts *userListOptions) {
		a := active
		opts.isActive = &a
	}
}

func ByKeyword(keyword string) UserFilter {
	return func(opts *userListOptions) {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			return
		}
		opts.keyword = &trimmed
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page, pageSize int, filters ...UserFilter) ([]*model.User, int64, error) {
	options := &userListOptions{}
	for _, filter := range filters {
		if filter != nil {
			filter(options)
		}
	}

	repoFilter := repository.UserListFilter{
		Role:       options.role,
		IsActive:   options.isActive,
		Keyword:    options.keyword,
		Pagination: toRepoPagination(page, pageSize),
	}

	users, err := s.userRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.userRepo.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// SetActive returns the previous state of the user for audit snapshots.
func (s *UserService) SetActive(ctx context.Context, operatorID, targetID uuid.UUID, active bool) (*model.User, error) {
	if operatorID == targetID && !active {
		return nil, ErrSelfDeactivateForbidden
	}

	before, err := s.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.SetActive(ctx, targetID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return before, nil
}

func (s *UserService) SetRole(ctx context.Context, operatorID, targetID uuid.UUID, role model.UserRole) (*model.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if operatorID == targetID {
		return nil, ErrSelfDemoteForbidden
	}

	before, err := s.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.SetRole(ctx, targetID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return before, nil
}
