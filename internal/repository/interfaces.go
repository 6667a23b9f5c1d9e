package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gymmaster/internal/model"
)

type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type UserListFilter struct {
	Role       *model.UserRole `json:"role,omitempty"`
	IsActive   *bool           `json:"is_active,omitempty"`
	Keyword    *string         `json:"keyword,omitempty"`
	Pagination Pagination      `json:"pagination"`
}

type MemberListFilter struct {
	IsActive   *bool      `json:"is_active,omitempty"`
	Keyword    *string    `json:"keyword,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type BranchListFilter struct {
	IsActive   *bool      `json:"is_active,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type MembershipTypeListFilter struct {
	IsActive   *bool      `json:"is_active,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type MembershipListFilter struct {
	MemberID   *uuid.UUID              `json:"member_id,omitempty"`
	Status     *model.MembershipStatus `json:"status,omitempty"`
	Pagination Pagination              `json:"pagination"`
}

type PaymentListFilter struct {
	MemberID   *uuid.UUID           `json:"member_id,omitempty"`
	Status     *model.PaymentStatus `json:"status,omitempty"`
	From       *time.Time           `json:"from,omitempty"`
	To         *time.Time           `json:"to,omitempty"`
	Pagination Pagination           `json:"pagination"`
}

type ClassListFilter struct {
	BranchID   *uuid.UUID         `json:"branch_id,omitempty"`
	TrainerID  *uuid.UUID         `json:"trainer_id,omitempty"`
	Status     *model.ClassStatus `json:"status,omitempty"`
	From       *time.Time         `json:"from,omitempty"`
	To         *time.Time         `json:"to,omitempty"`
	Pagination Pagination         `json:"pagination"`
}

type CheckInListFilter struct {
	MemberID   *uuid.UUID `json:"member_id,omitempty"`
	BranchID   *uuid.UUID `json:"branch_id,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	OpenOnly   bool       `json:"open_only,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type AuditListFilter struct {
	UserID     *uuid.UUID         `json:"user_id,omitempty"`
	Action     *model.AuditAction `json:"action,omitempty"`
	Entity     *string            `json:"entity,omitempty"`
	EntityID   *string            `json:"entity_id,omitempty"`
	StartTime  *time.Time         `json:"start_time,omitempty"`
	EndTime    *time.Time         `json:"end_time,omitempty"`
	Pagination Pagination         `json:"pagination"`
}

type NamedCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type CheckInStats struct {
	Total              int64        `json:"total"`
	Today              int64        `json:"today"`
	CurrentlyOpen      int64        `json:"currently_open"`
	AverageVisitMinute float64      `json:"average_visit_minutes"`
	ByBranch           []NamedCount `json:"by_branch"`
	ByHour             []NamedCount `json:"by_hour"`
}

type AuditStats struct {
	Total    int64        `json:"total"`
	ByAction []NamedCount `json:"by_action"`
	ByEntity []NamedCount `json:"by_entity"`
	TopUsers []NamedCount `json:"top_users"`
}

type DashboardSummary struct {
	ActiveMembers     int64 `json:"active_members"`
	ActiveMemberships int64 `json:"active_memberships"`
	CheckInsToday     int64 `json:"check_ins_today"`
	OpenVisits        int64 `json:"open_visits"`
	RevenueMonthCents int64 `json:"revenue_month_cents"`
	UpcomingClasses   int64 `json:"upcoming_classes"`
}

type RevenuePoint struct {
	Period      string `json:"period"`
	AmountCents int64  `json:"amount_cents"`
	Payments    int64  `json:"payments"`
}

type AttendancePoint struct {
	Day           string  `json:"day"`
	CheckIns      int64   `json:"check_ins"`
	UniqueMembers int64   `json:"unique_members"`
	AvgMinutes    float64 `json:"average_visit_minutes"`
}

type MembershipBreakdown struct {
	ByStatus []NamedCount `json:"by_status"`
	ByType   []NamedCount `json:"by_type"`
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetRole(ctx context.Context, id uuid.UUID, role model.UserRole) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, filter UserListFilter) ([]*model.User, error)
	Count(ctx context.Context, filter UserListFilter) (int64, error)
}

type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Member, error)
	FindByQRCode(ctx context.Context, qrCode string) (*model.Member, error)
	Create(ctx context.Context, member *model.Member) error
	// CreateWithUser inserts both rows in one transaction and sets member.UserID.
	CreateWithUser(ctx context.Context, user *model.User, member *model.Member) error
	Update(ctx context.Context, member *model.Member) error
	UpdateQRCode(ctx context.Context, id uuid.UUID, qrCode string, expiry time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, filter MemberListFilter) ([]*model.Member, error)
	Count(ctx context.Context, filter MemberListFilter) (int64, error)
}

type BranchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error)
	Create(ctx context.Context, branch *model.Branch) error
	Update(ctx context.Context, branch *model.Branch) error
	List(ctx context.Context, filter BranchListFilter) ([]*model.Branch, error)
	Count(ctx context.Context, filter BranchListFilter) (int64, error)
}

type MembershipTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.MembershipType, error)
	Create(ctx context.Context, membershipType *model.MembershipType) error
	Update(ctx context.Context, membershipType *model.MembershipType) error
	List(ctx context.Context, filter MembershipTypeListFilter) ([]*model.MembershipType, error)
	Count(ctx context.Context, filter MembershipTypeListFilter) (int64, error)
}

type MembershipRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Membership, error)
	// FindActive returns the member's ACTIVE membership regardless of dates.
	FindActive(ctx context.Context, memberID uuid.UUID) (*model.Membership, error)
	// FindCovering returns an ACTIVE membership with start <= at <= end.
	FindCovering(ctx context.Context, memberID uuid.UUID, at time.Time) (*model.Membership, error)
	Create(ctx context.Context, membership *model.Membership) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.MembershipStatus) error
	ExpireEnded(ctx context.Context, now time.Time) ([]*model.Membership, error)
	List(ctx context.Context, filter MembershipListFilter) ([]*model.Membership, error)
	Count(ctx context.Context, filter MembershipListFilter) (int64, error)
}

type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	Create(ctx context.Context, payment *model.Payment) error
	Update(ctx context.Context, payment *model.Payment) error
	List(ctx context.Context, filter PaymentListFilter) ([]*model.Payment, error)
	Count(ctx context.Context, filter PaymentListFilter) (int64, error)
}

type ClassRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.GymClass, error)
	Create(ctx context.Context, class *model.GymClass) error
	Update(ctx context.Context, class *model.GymClass) error
	List(ctx context.Context, filter ClassListFilter) ([]*model.GymClass, error)
	Count(ctx context.Context, filter ClassListFilter) (int64, error)
}

type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// Reserve locks the class row and inserts a CONFIRMED reservation when a seat is free.
	Reserve(ctx context.Context, reservation *model.Reservation, capacity int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) error
	CancelAllForClass(ctx context.Context, classID uuid.UUID) (int64, error)
	ListByClass(ctx context.Context, classID uuid.UUID) ([]*model.Reservation, error)
	ListByMember(ctx context.Context, memberID uuid.UUID, page Pagination) ([]*model.Reservation, error)
}

type CheckInRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.CheckIn, error)
	FindOpenByMember(ctx context.Context, memberID uuid.UUID) (*model.CheckIn, error)
	Create(ctx context.Context, checkIn *model.CheckIn) error
	// Close only affects open visits and returns ErrNotFound otherwise.
	Close(ctx context.Context, id uuid.UUID, at time.Time, notes *string) error
	CloseStale(ctx context.Context, before, at time.Time, note string) (int64, error)
	List(ctx context.Context, filter CheckInListFilter) ([]*model.CheckIn, error)
	Count(ctx context.Context, filter CheckInListFilter) (int64, error)
	Stats(ctx context.Context, from, to, now time.Time) (*CheckInStats, error)
}

type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filter AuditListFilter) ([]*model.AuditLog, error)
	Count(ctx context.Context, filter AuditListFilter) (int64, error)
	Stats(ctx context.Context, since time.Time) (*AuditStats, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ReportRepository interface {
	Dashboard(ctx context.Context, now time.Time) (*DashboardSummary, error)
	Revenue(ctx context.Context, from, to time.Time, groupBy string) ([]RevenuePoint, error)
	Attendance(ctx context.Context, from, to time.Time, branchID *uuid.UUID) ([]AttendancePoint, error)
	Memberships(ctx context.Context) (*MembershipBreakdown, error)
}
