package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

// store backs every fake repository so joins (member -> user) behave like the database.
type store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*model.User
	members      map[uuid.UUID]*model.Member
	branches     map[uuid.UUID]*model.Branch
	types        map[uuid.UUID]*model.MembershipType
	memberships  map[uuid.UUID]*model.Membership
	checkIns     map[uuid.UUID]*model.CheckIn
	payments     map[uuid.UUID]*model.Payment
	classes      map[uuid.UUID]*model.GymClass
	reservations map[uuid.UUID]*model.Reservation
	audits       []*model.AuditLog
}

func newStore() *store {
	return &store{
		users:        make(map[uuid.UUID]*model.User),
		members:      make(map[uuid.UUID]*model.Member),
		branches:     make(map[uuid.UUID]*model.Branch),
		types:        make(map[uuid.UUID]*model.MembershipType),
		memberships:  make(map[uuid.UUID]*model.Membership),
		checkIns:     make(map[uuid.UUID]*model.CheckIn),
		payments:     make(map[uuid.UUID]*model.Payment),
		classes:      make(map[uuid.UUID]*model.GymClass),
		reservations: make(map[uuid.UUID]*model.Reservation),
	}
}

func conflict(name string) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, name)
}

func paginate[T any](items []T, p repository.Pagination) []T {
	offset := int(p.Offset)
	if offset > len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && offset+int(p.Limit) < end {
		end = offset + int(p.Limit)
	}
	return items[offset:end]
}

// users

type fakeUserRepo struct{ s *store }

func (r fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertUser(user)
}

func (s *store) insertUser(user *model.User) error {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return conflict("users_email_key")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r fakeUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (r fakeUserRepo) SetRole(_ context.Context, id uuid.UUID, role model.UserRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r fakeUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r fakeUserRepo) List(_ context.Context, filter repository.UserListFilter) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return paginate(r.filterUsers(filter), filter.Pagination), nil
}

func (r fakeUserRepo) Count(_ context.Context, filter repository.UserListFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filterUsers(filter))), nil
}

func (r fakeUserRepo) filterUsers(filter repository.UserListFilter) []*model.User {
	out := make([]*model.User, 0)
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.Keyword != nil && !strings.Contains(strings.ToLower(u.Email+u.FirstName+u.LastName), strings.ToLower(*filter.Keyword)) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// members

type fakeMemberRepo struct{ s *store }

func (s *store) memberWithUser(m *model.Member) *model.Member {
	cp := *m
	if u, ok := s.users[m.UserID]; ok {
		uc := *u
		cp.User = &uc
	}
	return &cp
}

func (r fakeMemberRepo) find(match func(*model.Member) bool) (*model.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if match(m) {
			return r.s.memberWithUser(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeMemberRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Member, error) {
	return r.find(func(m *model.Member) bool { return m.ID == id })
}

func (r fakeMemberRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*model.Member, error) {
	return r.find(func(m *model.Member) bool { return m.UserID == userID })
}

func (r fakeMemberRepo) FindByQRCode(_ context.Context, qrCode string) (*model.Member, error) {
	return r.find(func(m *model.Member) bool { return m.QRCode == qrCode })
}

func (r fakeMemberRepo) Create(_ context.Context, member *model.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertMember(member)
}

func (s *store) insertMember(member *model.Member) error {
	for _, m := range s.members {
		switch {
		case m.UserID == member.UserID:
			return conflict("members_user_id_key")
		case m.MembershipNumber == member.MembershipNumber:
			return conflict("members_membership_number_key")
		case m.QRCode == member.QRCode:
			return conflict("members_qr_code_key")
		}
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	cp := *member
	cp.User = nil
	s.members[member.ID] = &cp
	return nil
}

func (r fakeMemberRepo) CreateWithUser(_ context.Context, user *model.User, member *model.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.insertUser(user); err != nil {
		return err
	}
	member.UserID = user.ID
	if err := r.s.insertMember(member); err != nil {
		delete(r.s.users, user.ID)
		return err
	}
	cp := *user
	member.User = &cp
	return nil
}

func (r fakeMemberRepo) Update(_ context.Context, member *model.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[member.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *member
	cp.User = nil
	r.s.members[member.ID] = &cp
	return nil
}

func (r fakeMemberRepo) UpdateQRCode(_ context.Context, id uuid.UUID, qrCode string, expiry time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.QRCode = qrCode
	m.QRCodeExpiry = expiry
	return nil
}

func (r fakeMemberRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.IsActive = active
	return nil
}

func (r fakeMemberRepo) List(_ context.Context, filter repository.MemberListFilter) ([]*model.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return paginate(r.filterMembers(filter), filter.Pagination), nil
}

func (r fakeMemberRepo) Count(_ context.Context, filter repository.MemberListFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filterMembers(filter))), nil
}

func (r fakeMemberRepo) filterMembers(filter repository.MemberListFilter) []*model.Member {
	out := make([]*model.Member, 0)
	for _, m := range r.s.members {
		if filter.IsActive != nil && m.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, r.s.memberWithUser(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MembershipNumber < out[j].MembershipNumber })
	return out
}

// branches

type fakeBranchRepo struct{ s *store }

func (r fakeBranchRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.branches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r fakeBranchRepo) Create(_ context.Context, branch *model.Branch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.branches {
		if b.Name == branch.Name {
			return conflict("branches_name_key")
		}
	}
	cp := *branch
	r.s.branches[branch.ID] = &cp
	return nil
}

func (r fakeBranchRepo) Update(_ context.Context, branch *model.Branch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.branches[branch.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, b := range r.s.branches {
		if id != branch.ID && b.Name == branch.Name {
			return conflict("branches_name_key")
		}
	}
	cp := *branch
	r.s.branches[branch.ID] = &cp
	return nil
}

func (r fakeBranchRepo) List(_ context.Context, filter repository.BranchListFilter) ([]*model.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Branch, 0)
	for _, b := range r.s.branches {
		if filter.IsActive == nil || b.IsActive == *filter.IsActive {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Pagination), nil
}

func (r fakeBranchRepo) Count(ctx context.Context, filter repository.BranchListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

// membership types

type fakeTypeRepo struct{ s *store }

func (r fakeTypeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.MembershipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTypeRepo) Create(_ context.Context, item *model.MembershipType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.types {
		if t.Name == item.Name {
			return conflict("membership_types_name_key")
		}
	}
	cp := *item
	r.s.types[item.ID] = &cp
	return nil
}

func (r fakeTypeRepo) Update(_ context.Context, item *model.MembershipType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.types[item.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *item
	r.s.types[item.ID] = &cp
	return nil
}

func (r fakeTypeRepo) List(_ context.Context, filter repository.MembershipTypeListFilter) ([]*model.MembershipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.MembershipType, 0)
	for _, t := range r.s.types {
		if filter.IsActive == nil || t.IsActive == *filter.IsActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Pagination), nil
}

func (r fakeTypeRepo) Count(ctx context.Context, filter repository.MembershipTypeListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

// memberships

type fakeMembershipRepo struct{ s *store }

func (r fakeMembershipRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r fakeMembershipRepo) FindActive(_ context.Context, memberID uuid.UUID) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.MemberID == memberID && m.Status == model.MembershipStatusActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeMembershipRepo) FindCovering(_ context.Context, memberID uuid.UUID, at time.Time) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.MemberID == memberID && m.CoversInstant(at) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeMembershipRepo) activeExists(memberID, except uuid.UUID) bool {
	for id, m := range r.s.memberships {
		if id != except && m.MemberID == memberID && m.Status == model.MembershipStatusActive {
			return true
		}
	}
	return false
}

func (r fakeMembershipRepo) Create(_ context.Context, item *model.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.Status == model.MembershipStatusActive && r.activeExists(item.MemberID, item.ID) {
		return conflict("one_active_membership_per_member")
	}
	cp := *item
	r.s.memberships[item.ID] = &cp
	return nil
}

func (r fakeMembershipRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.MembershipStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok {
		return repository.ErrNotFound
	}
	if status == model.MembershipStatusActive && r.activeExists(m.MemberID, id) {
		return conflict("one_active_membership_per_member")
	}
	m.Status = status
	return nil
}

func (r fakeMembershipRepo) ExpireEnded(_ context.Context, now time.Time) ([]*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Membership, 0)
	for _, m := range r.s.memberships {
		if m.Status == model.MembershipStatusActive && m.EndDate.Before(now) {
			m.Status = model.MembershipStatusExpired
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeMembershipRepo) List(_ context.Context, filter repository.MembershipListFilter) ([]*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Membership, 0)
	for _, m := range r.s.memberships {
		if filter.MemberID != nil && m.MemberID != *filter.MemberID {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return paginate(out, filter.Pagination), nil
}

func (r fakeMembershipRepo) Count(ctx context.Context, filter repository.MembershipListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

// check-ins

type fakeCheckInRepo struct{ s *store }

func (r fakeCheckInRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.checkIns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeCheckInRepo) FindOpenByMember(_ context.Context, memberID uuid.UUID) (*model.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.checkIns {
		if c.MemberID == memberID && c.IsOpen() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create mirrors the one_open_visit_per_member partial index.
func (r fakeCheckInRepo) Create(_ context.Context, item *model.CheckIn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.IsOpen() {
		for _, c := range r.s.checkIns {
			if c.MemberID == item.MemberID && c.IsOpen() {
				return conflict("one_open_visit_per_member")
			}
		}
	}
	cp := *item
	r.s.checkIns[item.ID] = &cp
	return nil
}

func (r fakeCheckInRepo) Close(_ context.Context, id uuid.UUID, at time.Time, notes *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.checkIns[id]
	if !ok || !c.IsOpen() {
		return repository.ErrNotFound
	}
	c.CheckOutAt = &at
	if notes != nil {
		c.Notes = notes
	}
	return nil
}

func (r fakeCheckInRepo) CloseStale(_ context.Context, before, at time.Time, note string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var closed int64
	for _, c := range r.s.checkIns {
		if c.IsOpen() && c.CheckInAt.Before(before) {
			closedAt := at
			n := note
			c.CheckOutAt = &closedAt
			c.Notes = &n
			closed++
		}
	}
	return closed, nil
}

func (r fakeCheckInRepo) List(_ context.Context, filter repository.CheckInListFilter) ([]*model.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.CheckIn, 0)
	for _, c := range r.s.checkIns {
		if filter.MemberID != nil && c.MemberID != *filter.MemberID {
			continue
		}
		if filter.BranchID != nil && c.BranchID != *filter.BranchID {
			continue
		}
		if filter.OpenOnly && !c.IsOpen() {
			continue
		}
		if filter.From != nil && c.CheckInAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && c.CheckInAt.After(*filter.To) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInAt.After(out[j].CheckInAt) })
	return paginate(out, filter.Pagination), nil
}

func (r fakeCheckInRepo) Count(ctx context.Context, filter repository.CheckInListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

func (r fakeCheckInRepo) Stats(_ context.Context, from, to, _ time.Time) (*repository.CheckInStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &repository.CheckInStats{}
	for _, c := range r.s.checkIns {
		if c.IsOpen() {
			stats.CurrentlyOpen++
		}
		if !c.CheckInAt.Before(from) && !c.CheckInAt.After(to) {
			stats.Total++
		}
	}
	return stats, nil
}

func (s *store) openVisits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.checkIns {
		if c.IsOpen() {
			n++
		}
	}
	return n
}

// payments

type fakePaymentRepo struct{ s *store }

func (r fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakePaymentRepo) Create(_ context.Context, item *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *item
	r.s.payments[item.ID] = &cp
	return nil
}

func (r fakePaymentRepo) Update(_ context.Context, item *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[item.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *item
	r.s.payments[item.ID] = &cp
	return nil
}

func (r fakePaymentRepo) List(_ context.Context, filter repository.PaymentListFilter) ([]*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Payment, 0)
	for _, p := range r.s.payments {
		if filter.MemberID != nil && p.MemberID != *filter.MemberID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return paginate(out, filter.Pagination), nil
}

func (r fakePaymentRepo) Count(ctx context.Context, filter repository.PaymentListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

// classes and reservations

type fakeClassRepo struct{ s *store }

func (r fakeClassRepo) withReserved(c *model.GymClass) *model.GymClass {
	cp := *c
	cp.Reserved = 0
	for _, res := range r.s.reservations {
		if res.ClassID == c.ID && res.Status == model.ReservationStatusConfirmed {
			cp.Reserved++
		}
	}
	return &cp
}

func (r fakeClassRepo) FindByID(_ context.Context, id uuid.UUID) (*model.GymClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withReserved(c), nil
}

func (r fakeClassRepo) Create(_ context.Context, item *model.GymClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *item
	r.s.classes[item.ID] = &cp
	return nil
}

func (r fakeClassRepo) Update(_ context.Context, item *model.GymClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.classes[item.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *item
	r.s.classes[item.ID] = &cp
	return nil
}

func (r fakeClassRepo) List(_ context.Context, filter repository.ClassListFilter) ([]*model.GymClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.GymClass, 0)
	for _, c := range r.s.classes {
		if filter.BranchID != nil && c.BranchID != *filter.BranchID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, r.withReserved(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return paginate(out, filter.Pagination), nil
}

func (r fakeClassRepo) Count(ctx context.Context, filter repository.ClassListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

type fakeReservationRepo struct{ s *store }

func (r fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r fakeReservationRepo) Reserve(_ context.Context, item *model.Reservation, capacity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.classes[item.ClassID]; !ok {
		return repository.ErrNotFound
	}
	confirmed := 0
	for _, res := range r.s.reservations {
		if res.ClassID != item.ClassID || res.Status != model.ReservationStatusConfirmed {
			continue
		}
		confirmed++
		if res.MemberID == item.MemberID {
			return conflict("one_confirmed_reservation_per_member")
		}
	}
	if confirmed >= capacity {
		return repository.ErrCapacityReached
	}
	item.Status = model.ReservationStatusConfirmed
	cp := *item
	r.s.reservations[item.ID] = &cp
	return nil
}

func (r fakeReservationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.ReservationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.Status = status
	return nil
}

func (r fakeReservationRepo) CancelAllForClass(_ context.Context, classID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, res := range r.s.reservations {
		if res.ClassID == classID && res.Status == model.ReservationStatusConfirmed {
			res.Status = model.ReservationStatusCancelled
			n++
		}
	}
	return n, nil
}

func (r fakeReservationRepo) ListByClass(_ context.Context, classID uuid.UUID) ([]*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, res := range r.s.reservations {
		if res.ClassID == classID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeReservationRepo) ListByMember(_ context.Context, memberID uuid.UUID, p repository.Pagination) ([]*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, res := range r.s.reservations {
		if res.MemberID == memberID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return paginate(out, p), nil
}

// audit

type fakeAuditRepo struct {
	s          *store
	lastCutoff time.Time
	lastSince  time.Time
}

func (r *fakeAuditRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = int64(len(r.s.audits) + 1)
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter repository.AuditListFilter) ([]*model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.AuditLog, 0)
	for _, a := range r.s.audits {
		if filter.Entity != nil && a.Entity != *filter.Entity {
			continue
		}
		if filter.EntityID != nil && (a.EntityID == nil || *a.EntityID != *filter.EntityID) {
			continue
		}
		out = append(out, a)
	}
	return paginate(out, filter.Pagination), nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter repository.AuditListFilter) (int64, error) {
	filter.Pagination = repository.Pagination{}
	items, err := r.List(ctx, filter)
	return int64(len(items)), err
}

func (r *fakeAuditRepo) Stats(_ context.Context, since time.Time) (*repository.AuditStats, error) {
	r.lastSince = since
	return &repository.AuditStats{Total: int64(len(r.s.audits))}, nil
}

func (r *fakeAuditRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.lastCutoff = cutoff
	kept := r.s.audits[:0]
	var deleted int64
	for _, a := range r.s.audits {
		if a.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.s.audits = kept
	return deleted, nil
}

// publisher

type recordedEvent struct {
	name    string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(name string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: name, payload: payload})
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// seed helpers

func (s *store) addUser(email string, role model.UserRole, active bool) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  active,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *store) addMember(user *model.User, qr string, expiry time.Time) *model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &model.Member{
		ID:               uuid.New(),
		UserID:           user.ID,
		MembershipNumber: "GM-2026-" + strings.ToUpper(uuid.NewString()[:6]),
		QRCode:           qr,
		QRCodeExpiry:     expiry,
		IsActive:         true,
	}
	s.members[m.ID] = m
	return s.memberWithUser(m)
}

func (s *store) addBranch(name string, active bool) *model.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &model.Branch{
		ID:          uuid.New(),
		Name:        name,
		Address:     "1 Main St",
		OpeningTime: "06:00",
		ClosingTime: "22:00",
		IsActive:    active,
	}
	s.branches[b.ID] = b
	cp := *b
	return &cp
}

func (s *store) addMembership(memberID uuid.UUID, start, end time.Time, status model.MembershipStatus) *model.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &model.Membership{
		ID:        uuid.New(),
		MemberID:  memberID,
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	s.memberships[m.ID] = m
	cp := *m
	return &cp
}

func (s *store) addOpenVisit(memberID, branchID uuid.UUID, at time.Time) *model.CheckIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.CheckIn{
		ID:        uuid.New(),
		MemberID:  memberID,
		BranchID:  branchID,
		CheckInAt: at,
		CreatedAt: at,
	}
	s.checkIns[c.ID] = c
	cp := *c
	return &cp
}
