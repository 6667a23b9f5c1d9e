package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

const (
	branchTimeLayout   = "15:04"
	defaultOpeningTime = "06:00"
	defaultClosingTime = "22:00"
)

var (
	ErrBranchNotFound  = errors.New("branch not found")
	ErrBranchNameTaken = errors.New("branch name already exists")
	ErrInvalidHours    = errors.New("opening hours must be HH:MM with opening before closing")
)

type BranchRequest struct {
	Name        *string
	Address     *string
	Phone       *string
	Email       *string
	OpeningTime *string
	ClosingTime *string
	IsActive    *bool
}

type BranchService struct {
	branchRepo repository.BranchRepository
}

func NewBranchService(branchRepo repository.BranchRepository) *BranchService {
	return &BranchService{branchRepo: branchRepo}
}

func (s *BranchService) Create(ctx context.Context, req BranchRequest) (*model.Branch, error) {
	branch := &model.Branch{
		ID:          uuid.New(),
		OpeningTime: defaultOpeningTime,
		ClosingTime: defaultClosingTime,
		IsActive:    true,
	}
	if err := applyBranchRequest(branch, req); err != nil {
		return nil, err
	}
	if branch.Name == "" || branch.Address == "" {
		return nil, ErrInvalidInput
	}

	if err := s.branchRepo.Create(ctx, branch); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrBranchNameTaken
		}
		return nil, err
	}
	return branch, nil
}

func (s *BranchService) GetByID(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	branch, err := s.branchRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return branch, nil
}

func (s *BranchService) List(ctx context.Context, isActive *bool, page, pageSize int) ([]*model.Branch, int64, error) {
	filter := repository.BranchListFilter{
		IsActive:   isActive,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.branchRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.branchRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update returns the stored branch and a copy of it as it was before the change.
func (s *BranchService) Update(ctx context.Context, id uuid.UUID, req BranchRequest) (*model.Branch, *model.Branch, error) {
	branch, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *branch

	if err := applyBranchRequest(branch, req); err != nil {
		return nil, nil, err
	}
	if branch.Name == "" || branch.Address == "" {
		return nil, nil, ErrInvalidInput
	}

	if err := s.branchRepo.Update(ctx, branch); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, nil, ErrBranchNameTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, ErrBranchNotFound
		}
		return nil, nil, err
	}
	return branch, &before, nil
}

// Deactivate is the DELETE semantics for branches; check-in history references them.
func (s *BranchService) Deactivate(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	inactive := false
	_, before, err := s.Update(ctx, id, BranchRequest{IsActive: &inactive})
	return before, err
}

func applyBranchRequest(branch *model.Branch, req BranchRequest) error {
	if req.Name != nil {
		branch.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		branch.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		branch.Phone = normalizeStringPointer(req.Phone)
	}
	if req.Email != nil {
		branch.Email = normalizeStringPointer(req.Email)
		if branch.Email != nil {
			email, err := normalizeEmail(*branch.Email)
			if err != nil {
				return err
			}
			branch.Email = &email
		}
	}
	if req.OpeningTime != nil {
		branch.OpeningTime = strings.TrimSpace(*req.OpeningTime)
	}
	if req.ClosingTime != nil {
		branch.ClosingTime = strings.TrimSpace(*req.ClosingTime)
	}
	if req.IsActive != nil {
		branch.IsActive = *req.IsActive
	}
	return validateBranchHours(branch.OpeningTime, branch.ClosingTime)
}

func validateBranchHours(opening, closing string) error {
	open, err := time.Parse(branchTimeLayout, opening)
	if err != nil {
		return ErrInvalidHours
	}
	closeAt, err := time.Parse(branchTimeLayout, closing)
	if err != nil {
		return ErrInvalidHours
	}
	if !open.Before(closeAt) {
		return ErrInvalidHours
	}
	return nil
}
