package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/event"
	"gymmaster/internal/metrics"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

const AutoCloseNote = "Auto-closed: visit exceeded maximum duration"

const defaultStatsWindow = 30 * 24 * time.Hour

var (
	ErrInvalidToken       = errors.New("invalid qr code")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrTokenExpired       = errors.New("qr code expired")
	ErrNoActiveMembership = errors.New("no active membership")
	ErrVisitAlreadyOpen   = errors.New("member already has an open visit")
	ErrBranchUnavailable  = errors.New("branch not found or inactive")
	ErrCheckInNotFound    = errors.New("check-in not found")
	ErrAlreadyClosed      = errors.New("check-in already closed")
)

type Publisher interface {
	Publish(event string, payload any)
}

type CheckInQuery struct {
	MemberID *uuid.UUID
	BranchID *uuid.UUID
	From     *time.Time
	To       *time.Time
	OpenOnly bool
}

type CheckInService struct {
	memberRepo     repository.MemberRepository
	membershipRepo repository.MembershipRepository
	branchRepo     repository.BranchRepository
	checkInRepo    repository.CheckInRepository
	publisher      Publisher
	logger         *zap.Logger
	clock          Clock
}

func NewCheckInService(
	memberRepo repository.MemberRepository,
	membershipRepo repository.MembershipRepository,
	branchRepo repository.BranchRepository,
	checkInRepo repository.CheckInRepository,
	publisher Publisher,
	logger *zap.Logger,
) *CheckInService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckInService{
		memberRepo:     memberRepo,
		membershipRepo: membershipRepo,
		branchRepo:     branchRepo,
		checkInRepo:    checkInRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *CheckInService) WithClock(clock Clock) *CheckInService {
	s.clock = clock
	return s
}

// CheckIn opens a visit for the holder of qrCode. Checks run in a fixed
// order and stop at the first failure.
func (s *CheckInService) CheckIn(ctx context.Context, qrCode string, branchID uuid.UUID) (*model.CheckIn, error) {
	checkIn, err := s.checkInByQR(ctx, qrCode, branchID)
	metrics.IncCheckInAttempt("qr", checkInResult(err))
	return checkIn, err
}

func (s *CheckInService) checkInByQR(ctx context.Context, qrCode string, branchID uuid.UUID) (*model.CheckIn, error) {
	code := strings.TrimSpace(qrCode)
	if code == "" {
		return nil, ErrInvalidToken
	}

	member, err := s.memberRepo.FindByQRCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !memberCanEnter(member) {
		return nil, ErrInactiveAccount
	}

	now := s.clock.now()
	if member.QRExpired(now) {
		return nil, ErrTokenExpired
	}

	return s.openVisit(ctx, member, branchID, nil, now, "qr")
}

// AdminCheckIn is the front-desk path: no QR token and no account-status check.
func (s *CheckInService) AdminCheckIn(ctx context.Context, memberID, branchID uuid.UUID, notes *string) (*model.CheckIn, error) {
	checkIn, err := s.adminCheckIn(ctx, memberID, branchID, notes)
	metrics.IncCheckInAttempt("admin", checkInResult(err))
	return checkIn, err
}

func (s *CheckInService) adminCheckIn(ctx context.Context, memberID, branchID uuid.UUID, notes *string) (*model.CheckIn, error) {
	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	// QR and account-status checks do not apply here; membership, open-visit
	// and branch rules do.
	return s.openVisit(ctx, member, branchID, normalizeStringPointer(notes), s.clock.now(), "admin")
}

func (s *CheckInService) openVisit(
	ctx context.Context,
	member *model.Member,
	branchID uuid.UUID,
	notes *string,
	now time.Time,
	source string,
) (*model.CheckIn, error) {
	if _, err := s.membershipRepo.FindCovering(ctx, member.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveMembership
		}
		return nil, err
	}

	if _, err := s.checkInRepo.FindOpenByMember(ctx, member.ID); err == nil {
		return nil, ErrVisitAlreadyOpen
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	branch, err := s.branchRepo.FindByID(ctx, branchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBranchUnavailable
		}
		return nil, err
	}
	if !branch.IsActive {
		return nil, ErrBranchUnavailable
	}

	checkIn := &model.CheckIn{
		ID:         uuid.New(),
		MemberID:   member.ID,
		BranchID:   branch.ID,
		CheckInAt:  now,
		Notes:      notes,
		CreatedAt:  now,
		MemberName: member.DisplayName(),
		BranchName: branch.Name,
	}

	if err := s.checkInRepo.Create(ctx, checkIn); err != nil {
		// The open-visit index closes the race between the lookup above and this insert.
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrVisitAlreadyOpen
		}
		return nil, err
	}

	s.publish(event.CheckInOpened, checkIn, source)
	return checkIn, nil
}

func (s *CheckInService) CheckOut(ctx context.Context, checkInID uuid.UUID, notes *string) (*model.CheckIn, error) {
	checkIn, err := s.checkInRepo.FindByID(ctx, checkInID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCheckInNotFound
		}
		return nil, err
	}
	return s.closeVisit(ctx, checkIn, notes, "manual")
}

func (s *CheckInService) AdminCheckOut(ctx context.Context, memberID uuid.UUID, notes *string) (*model.CheckIn, error) {
	checkIn, err := s.checkInRepo.FindOpenByMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCheckInNotFound
		}
		return nil, err
	}
	return s.closeVisit(ctx, checkIn, notes, "admin")
}

func (s *CheckInService) closeVisit(ctx context.Context, checkIn *model.CheckIn, notes *string, source string) (*model.CheckIn, error) {
	if !checkIn.IsOpen() {
		return nil, ErrAlreadyClosed
	}

	now := s.clock.now()
	notes = normalizeStringPointer(notes)
	if err := s.checkInRepo.Close(ctx, checkIn.ID, now, notes); err != nil {
		// Someone else closed it between the read and the guarded update.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyClosed
		}
		return nil, err
	}

	checkIn.CheckOutAt = &now
	if notes != nil {
		checkIn.Notes = notes
	}

	metrics.ObserveCheckOut(source, checkIn.Duration())
	s.publish(event.CheckInClosed, checkIn, source)
	return checkIn, nil
}

// AutoClose closes every open visit that started strictly before now-threshold.
func (s *CheckInService) AutoClose(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, ErrInvalidInput
	}

	now := s.clock.now()
	closed, err := s.checkInRepo.CloseStale(ctx, now.Add(-threshold), now, AutoCloseNote)
	if err != nil {
		return 0, err
	}

	metrics.AddAutoClosed(closed)
	if closed > 0 {
		s.logger.Info("auto-closed stale visits", zap.Int64("closed", closed), zap.Duration("threshold", threshold))
		if s.publisher != nil {
			s.publisher.Publish(event.VisitsAutoClosed, event.VisitsAutoClosedPayload{
				Closed:    closed,
				Threshold: threshold.String(),
				At:        now,
			})
		}
	}
	return closed, nil
}

func (s *CheckInService) GetByID(ctx context.Context, id uuid.UUID) (*model.CheckIn, error) {
	checkIn, err := s.checkInRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCheckInNotFound
		}
		return nil, err
	}
	return checkIn, nil
}

func (s *CheckInService) Active(ctx context.Context, branchID *uuid.UUID, page, pageSize int) ([]*model.CheckIn, int64, error) {
	return s.List(ctx, CheckInQuery{BranchID: branchID, OpenOnly: true}, page, pageSize)
}

func (s *CheckInService) List(ctx context.Context, query CheckInQuery, page, pageSize int) ([]*model.CheckIn, int64, error) {
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, 0, ErrInvalidInput
	}

	filter := repository.CheckInListFilter{
		MemberID:   query.MemberID,
		BranchID:   query.BranchID,
		From:       query.From,
		To:         query.To,
		OpenOnly:   query.OpenOnly,
		Pagination: toRepoPagination(page, pageSize),
	}

	items, err := s.checkInRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.checkInRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MemberHistory lists the visits of the member linked to userID.
func (s *CheckInService) MemberHistory(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*model.CheckIn, int64, error) {
	member, err := s.memberRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrMemberNotFound
		}
		return nil, 0, err
	}
	return s.List(ctx, CheckInQuery{MemberID: &member.ID}, page, pageSize)
}

func (s *CheckInService) Stats(ctx context.Context, from, to *time.Time) (*repository.CheckInStats, error) {
	now := s.clock.now()
	end := now
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-defaultStatsWindow)
	if from != nil {
		start = from.UTC()
	}
	if end.Before(start) {
		return nil, ErrInvalidInput
	}

	stats, err := s.checkInRepo.Stats(ctx, start, end, now)
	if err != nil {
		return nil, err
	}
	metrics.SetOpenVisits(stats.CurrentlyOpen)
	return stats, nil
}

func (s *CheckInService) publish(name string, checkIn *model.CheckIn, source string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(name, event.CheckInPayload{
		CheckInID:  checkIn.ID.String(),
		MemberID:   checkIn.MemberID.String(),
		MemberName: checkIn.MemberName,
		BranchID:   checkIn.BranchID.String(),
		CheckInAt:  checkIn.CheckInAt,
		CheckOutAt: checkIn.CheckOutAt,
		Source:     source,
	})
}

func memberCanEnter(member *model.Member) bool {
	if member == nil || !member.IsActive {
		return false
	}
	return member.User == nil || member.User.IsActive
}

func checkInResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrNoActiveMembership):
		return "no_active_membership"
	case errors.Is(err, ErrVisitAlreadyOpen):
		return "visit_already_open"
	case errors.Is(err, ErrBranchUnavailable):
		return "branch_unavailable"
	case errors.Is(err, ErrMemberNotFound):
		return "member_not_found"
	default:
		return "error"
	}
}
