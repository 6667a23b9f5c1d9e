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
	ErrClassNotFound        = errors.New("class not found")
	ErrClassNotBookable     = errors.New("class is not open for reservations")
	ErrClassFull            = errors.New("class is full")
	ErrClassNotEditable     = errors.New("only scheduled classes can be changed")
	ErrInvalidSchedule      = errors.New("class must end after it starts")
	ErrInvalidTrainer       = errors.New("trainer not found")
	ErrAlreadyReserved      = errors.New("member already holds a reservation for this class")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotOwned  = errors.New("reservation belongs to another member")
	ErrReservationNotActive = errors.New("reservation is not confirmed")
)

type ClassRequest struct {
	BranchID    *uuid.UUID
	TrainerID   *uuid.UUID
	Name        *string
	Description *string
	Capacity    *int
	StartsAt    *time.Time
	EndsAt      *time.Time
}

type ClassQuery struct {
	BranchID  *uuid.UUID
	TrainerID *uuid.UUID
	Status    *model.ClassStatus
	From      *time.Time
	To        *time.Time
}

type ClassService struct {
	classRepo       repository.ClassRepository
	reservationRepo repository.ReservationRepository
	branchRepo      repository.BranchRepository
	userRepo        repository.UserRepository
	memberRepo      repository.MemberRepository
	membershipRepo  repository.MembershipRepository
	publisher       Publisher
	logger          *zap.Logger
	clock           Clock
}

func NewClassService(
	classRepo repository.ClassRepository,
	reservationRepo repository.ReservationRepository,
	branchRepo repository.BranchRepository,
	userRepo repository.UserRepository,
	memberRepo repository.MemberRepository,
	membershipRepo repository.MembershipRepository,
	publisher Publisher,
	logger *zap.Logger,
) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		classRepo:       classRepo,
		reservationRepo: reservationRepo,
		branchRepo:      branchRepo,
		userRepo:        userRepo,
		memberRepo:      memberRepo,
		membershipRepo:  membershipRepo,
		publisher:       publisher,
		logger:          logger,
	}
}

func (s *ClassService) WithClock(clock Clock) *ClassService {
	s.clock = clock
	return s
}

func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*model.GymClass, error) {
	if req.BranchID == nil || req.StartsAt == nil || req.EndsAt == nil || req.Capacity == nil || req.Name == nil {
		return nil, ErrInvalidInput
	}

	class := &model.GymClass{
		ID:     uuid.New(),
		Status: model.ClassStatusScheduled,
	}
	if err := s.applyClassRequest(ctx, class, req); err != nil {
		return nil, err
	}

	if err := s.classRepo.Create(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

func (s *ClassService) GetByID(ctx context.Context, id uuid.UUID) (*model.GymClass, error) {
	class, err := s.classRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return class, nil
}

func (s *ClassService) List(ctx context.Context, query ClassQuery, page, pageSize int) ([]*model.GymClass, int64, error) {
	filter := repository.ClassListFilter{
		BranchID:   query.BranchID,
		TrainerID:  query.TrainerID,
		Status:     query.Status,
		From:       query.From,
		To:         query.To,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.classRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.classRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *ClassService) Update(ctx context.Context, id uuid.UUID, req ClassRequest) (*model.GymClass, *model.GymClass, error) {
	class, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if class.Status != model.ClassStatusScheduled {
		return nil, nil, ErrClassNotEditable
	}
	before := *class

	if err := s.applyClassRequest(ctx, class, req); err != nil {
		return nil, nil, err
	}
	if class.Capacity < class.Reserved {
		return nil, nil, ErrInvalidInput
	}

	if err := s.classRepo.Update(ctx, class); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrClassNotFound
		}
		return nil, nil, err
	}
	return class, &before, nil
}

// Cancel marks the class CANCELLED and releases every confirmed seat.
func (s *ClassService) Cancel(ctx context.Context, id uuid.UUID) (*model.GymClass, error) {
	class, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if class.Status != model.ClassStatusScheduled {
		return nil, ErrClassNotEditable
	}
	before := *class

	class.Status = model.ClassStatusCancelled
	if err := s.classRepo.Update(ctx, class); err != nil {
		return nil, err
	}

	released, err := s.reservationRepo.CancelAllForClass(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	class.Reserved = 0

	if s.publisher != nil {
		s.publisher.Publish(event.ClassCancelled, event.ClassCancelledPayload{
			ClassID:              class.ID.String(),
			Name:                 class.Name,
			CancelledReservation: released,
		})
	}
	return &before, nil
}

func (s *ClassService) Reserve(ctx context.Context, classID, memberID uuid.UUID) (*model.Reservation, error) {
	class, err := s.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	if class.Status != model.ClassStatusScheduled || !class.StartsAt.After(now) {
		return nil, ErrClassNotBookable
	}

	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if !memberCanEnter(member) {
		return nil, ErrInactiveAccount
	}
	if _, err := s.membershipRepo.FindCovering(ctx, member.ID, class.StartsAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveMembership
		}
		return nil, err
	}

	reservation := &model.Reservation{
		ID:       uuid.New(),
		ClassID:  class.ID,
		MemberID: member.ID,
	}
	if err := s.reservationRepo.Reserve(ctx, reservation, class.Capacity); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, ErrClassFull
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAlreadyReserved
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return reservation, nil
}

// CancelReservation releases a seat. ownerID restricts the call to the member's own reservations.
func (s *ClassService) CancelReservation(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*model.Reservation, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if ownerID != nil && reservation.MemberID != *ownerID {
		return nil, ErrReservationNotOwned
	}
	if reservation.Status != model.ReservationStatusConfirmed {
		return nil, ErrReservationNotActive
	}
	before := *reservation

	if err := s.reservationRepo.UpdateStatus(ctx, reservation.ID, model.ReservationStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &before, nil
}

func (s *ClassService) Reservations(ctx context.Context, classID uuid.UUID) ([]*model.Reservation, error) {
	if _, err := s.GetByID(ctx, classID); err != nil {
		return nil, err
	}
	return s.reservationRepo.ListByClass(ctx, classID)
}

func (s *ClassService) MemberReservations(ctx context.Context, memberID uuid.UUID, page, pageSize int) ([]*model.Reservation, error) {
	return s.reservationRepo.ListByMember(ctx, memberID, toRepoPagination(page, pageSize))
}

func (s *ClassService) applyClassRequest(ctx context.Context, class *model.GymClass, req ClassRequest) error {
	if req.BranchID != nil {
		branch, err := s.branchRepo.FindByID(ctx, *req.BranchID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBranchUnavailable
			}
			return err
		}
		if !branch.IsActive {
			return ErrBranchUnavailable
		}
		class.BranchID = branch.ID
	}
	if req.TrainerID != nil {
		trainer, err := s.userRepo.FindByID(ctx, *req.TrainerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidTrainer
			}
			return err
		}
		if !trainer.IsActive || (trainer.Role != model.UserRoleTrainer && trainer.Role != model.UserRoleAdmin) {
			return ErrInvalidTrainer
		}
		class.TrainerID = &trainer.ID
	}
	if req.Name != nil {
		class.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		class.Description = normalizeStringPointer(req.Description)
	}
	if req.Capacity != nil {
		class.Capacity = *req.Capacity
	}
	if req.StartsAt != nil {
		class.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		class.EndsAt = req.EndsAt.UTC()
	}

	if class.Name == "" || class.Capacity <= 0 {
		return ErrInvalidInput
	}
	if !class.EndsAt.After(class.StartsAt) {
		return ErrInvalidSchedule
	}
	return nil
}
