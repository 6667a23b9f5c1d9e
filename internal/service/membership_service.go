package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/event"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

var (
	ErrMembershipTypeNotFound  = errors.New("membership type not found")
	ErrMembershipTypeInactive  = errors.New("membership type is inactive")
	ErrMembershipTypeNameTaken = errors.New("membership type name already exists")
	ErrMembershipNotFound      = errors.New("membership not found")
	ErrActiveMembershipExists  = errors.New("member already has an active membership")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type MembershipTypeRequest struct {
	Name               *string
	Description        *string
	DurationDays       *int
	PriceCents         *int64
	MaxClassesPerMonth *int
	IsActive           *bool
}

type CreateMembershipRequest struct {
	MemberID         uuid.UUID
	MembershipTypeID uuid.UUID
	BranchID         *uuid.UUID
	StartDate        *time.Time
	PriceCents       *int64
}

type MembershipService struct {
	typeRepo       repository.MembershipTypeRepository
	membershipRepo repository.MembershipRepository
	memberRepo     repository.MemberRepository
	publisher      Publisher
	logger         *zap.Logger
	clock          Clock
}

func NewMembershipService(
	typeRepo repository.MembershipTypeRepository,
	membershipRepo repository.MembershipRepository,
	memberRepo repository.MemberRepository,
	publisher Publisher,
	logger *zap.Logger,
) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{
		typeRepo:       typeRepo,
		membershipRepo: membershipRepo,
		memberRepo:     memberRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *MembershipService) WithClock(clock Clock) *MembershipService {
	s.clock = clock
	return s
}

func (s *MembershipService) CreateType(ctx context.Context, req MembershipTypeRequest) (*model.MembershipType, error) {
	item := &model.MembershipType{
		ID:       uuid.New(),
		IsActive: true,
	}
	if err := applyMembershipTypeRequest(item, req); err != nil {
		return nil, err
	}

	if err := s.typeRepo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrMembershipTypeNameTaken
		}
		return nil, err
	}
	return item, nil
}

func (s *MembershipService) GetType(ctx context.Context, id uuid.UUID) (*model.MembershipType, error) {
	item, err := s.typeRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipTypeNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *MembershipService) ListTypes(ctx context.Context, isActive *bool, page, pageSize int) ([]*model.MembershipType, int64, error) {
	filter := repository.MembershipTypeListFilter{
		IsActive:   isActive,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.typeRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.typeRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *MembershipService) UpdateType(ctx context.Context, id uuid.UUID, req MembershipTypeRequest) (*model.MembershipType, *model.MembershipType, error) {
	item, err := s.GetType(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *item

	if err := applyMembershipTypeRequest(item, req); err != nil {
		return nil, nil, err
	}
	if err := s.typeRepo.Update(ctx, item); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, nil, ErrMembershipTypeNameTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, ErrMembershipTypeNotFound
		}
		return nil, nil, err
	}
	return item, &before, nil
}

func (s *MembershipService) DeactivateType(ctx context.Context, id uuid.UUID) (*model.MembershipType, error) {
	inactive := false
	_, before, err := s.UpdateType(ctx, id, MembershipTypeRequest{IsActive: &inactive})
	return before, err
}

func applyMembershipTypeRequest(item *model.MembershipType, req MembershipTypeRequest) error {
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = normalizeStringPointer(req.Description)
	}
	if req.DurationDays != nil {
		item.DurationDays = *req.DurationDays
	}
	if req.PriceCents != nil {
		item.PriceCents = *req.PriceCents
	}
	if req.MaxClassesPerMonth != nil {
		if *req.MaxClassesPerMonth <= 0 {
			item.MaxClassesPerMonth = nil
		} else {
			limit := *req.MaxClassesPerMonth
			item.MaxClassesPerMonth = &limit
		}
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if item.Name == "" || item.DurationDays <= 0 || item.PriceCents < 0 {
		return ErrInvalidInput
	}
	return nil
}

// Create sells a membership starting at req.StartDate, or now. The single-active rule is checked first and
// enforced again by the one_active_membership_per_member index.
func (s *MembershipService) Create(ctx context.Context, req CreateMembershipRequest) (*model.Membership, error) {
	if _, err := s.memberRepo.FindByID(ctx, req.MemberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	membershipType, err := s.GetType(ctx, req.MembershipTypeID)
	if err != nil {
		return nil, err
	}
	if !membershipType.IsActive {
		return nil, ErrMembershipTypeInactive
	}

	if active, err := s.currentActive(ctx, req.MemberID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, ErrActiveMembershipExists
	}

	start := s.clock.now()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	price := membershipType.PriceCents
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, ErrInvalidInput
		}
		price = *req.PriceCents
	}

	membership := &model.Membership{
		ID:               uuid.New(),
		MemberID:         req.MemberID,
		MembershipTypeID: membershipType.ID,
		BranchID:         req.BranchID,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, membershipType.DurationDays),
		Status:           model.MembershipStatusActive,
		PriceCents:       price,
	}

	if err := s.membershipRepo.Create(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrActiveMembershipExists
		}
		return nil, err
	}
	return membership, nil
}

func (s *MembershipService) GetByID(ctx context.Context, id uuid.UUID) (*model.Membership, error) {
	item, err := s.membershipRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *MembershipService) List(
	ctx context.Context,
	memberID *uuid.UUID,
	status *model.MembershipStatus,
	page, pageSize int,
) ([]*model.Membership, int64, error) {
	if status != nil && !status.Valid() {
		return nil, 0, ErrInvalidInput
	}
	filter := repository.MembershipListFilter{
		MemberID:   memberID,
		Status:     status,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.membershipRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.membershipRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ChangeStatus moves a membership between ACTIVE, SUSPENDED and CANCELLED.
// EXPIRED and CANCELLED memberships are final.
func (s *MembershipService) ChangeStatus(ctx context.Context, id uuid.UUID, status model.MembershipStatus) (*model.Membership, *model.Membership, error) {
	switch status {
	case model.MembershipStatusActive, model.MembershipStatusSuspended, model.MembershipStatusCancelled:
	default:
		return nil, nil, ErrInvalidStatusTransition
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *item

	if item.Status == status {
		return item, &before, nil
	}
	if item.Status == model.MembershipStatusExpired || item.Status == model.MembershipStatusCancelled {
		return nil, nil, ErrInvalidStatusTransition
	}

	if status == model.MembershipStatusActive {
		if !s.clock.now().Before(item.EndDate) {
			return nil, nil, ErrInvalidStatusTransition
		}
		active, err := s.currentActive(ctx, item.MemberID)
		if err != nil {
			return nil, nil, err
		}
		if active != nil && active.ID != item.ID {
			return nil, nil, ErrActiveMembershipExists
		}
	}

	if err := s.membershipRepo.UpdateStatus(ctx, item.ID, status); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, nil, ErrActiveMembershipExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, ErrMembershipNotFound
		}
		return nil, nil, err
	}
	item.Status = status
	return item, &before, nil
}

// currentActive returns the member's ACTIVE membership, or nil. A row still
// marked ACTIVE after its end date is expired on the spot instead of waiting
// for the sweep, so it never blocks a renewal.
func (s *MembershipService) currentActive(ctx context.Context, memberID uuid.UUID) (*model.Membership, error) {
	active, err := s.membershipRepo.FindActive(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !active.EndDate.Before(s.clock.now()) {
		return active, nil
	}

	if err := s.membershipRepo.UpdateStatus(ctx, active.ID, model.MembershipStatusExpired); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	active.Status = model.MembershipStatusExpired
	s.publishExpired(active)
	return nil, nil
}

func (s *MembershipService) publishExpired(item *model.Membership) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event.MembershipExpired, event.MembershipExpiredPayload{
		MembershipID: item.ID.String(),
		MemberID:     item.MemberID.String(),
		EndDate:      item.EndDate,
	})
}

// ExpireEnded marks ACTIVE memberships past their end date as EXPIRED.
func (s *MembershipService) ExpireEnded(ctx context.Context) (int, error) {
	expired, err := s.membershipRepo.ExpireEnded(ctx, s.clock.now())
	if err != nil {
		return 0, err
	}

	for _, item := range expired {
		s.publishExpired(item)
	}
	if len(expired) > 0 {
		s.logger.Info("memberships expired", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}
