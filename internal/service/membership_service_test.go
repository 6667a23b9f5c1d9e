package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gymmaster/internal/event"
	"gymmaster/internal/model"
)

type membershipFixture struct {
	store  *store
	svc    *MembershipService
	pub    *fakePublisher
	member *model.Member
	plan   *model.MembershipType
}

func newMembershipFixture(t *testing.T, now time.Time) *membershipFixture {
	t.Helper()

	s := newStore()
	pub := &fakePublisher{}
	svc := NewMembershipService(fakeTypeRepo{s}, fakeMembershipRepo{s}, fakeMemberRepo{s}, pub, nil).
		WithClock(fixedClock(now))

	user := s.addUser("ben@example.com", model.UserRoleMember, true)
	member := s.addMember(user, "QR-BEN", now.Add(time.Hour))

	name := "Monthly"
	days := 30
	price := int64(4900)
	plan, err := svc.CreateType(context.Background(), MembershipTypeRequest{
		Name:         &name,
		DurationDays: &days,
		PriceCents:   &price,
	})
	require.NoError(t, err)

	return &membershipFixture{store: s, svc: svc, pub: pub, member: member, plan: plan}
}

func TestMembershipCreateComputesEndDate(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)

	m, err := f.svc.Create(context.Background(), CreateMembershipRequest{
		MemberID:         f.member.ID,
		MembershipTypeID: f.plan.ID,
	})
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusActive, m.Status)
	require.Equal(t, checkInNow, m.StartDate)
	require.Equal(t, checkInNow.AddDate(0, 0, 30), m.EndDate)
	require.EqualValues(t, 4900, m.PriceCents)
}

func TestMembershipCreateRejectsSecondActive(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ctx := context.Background()
	req := CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID}

	_, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrActiveMembershipExists)

	_, err = f.svc.Create(ctx, CreateMembershipRequest{MemberID: uuid.New(), MembershipTypeID: f.plan.ID})
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMembershipCreateExpiresLapsedActiveRow(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ctx := context.Background()

	lapsed := f.store.addMembership(f.member.ID, checkInNow.AddDate(0, -2, 0), checkInNow.Add(-time.Hour), model.MembershipStatusActive)

	renewed, err := f.svc.Create(ctx, CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID})
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusActive, renewed.Status)
	require.Equal(t, model.MembershipStatusExpired, f.store.memberships[lapsed.ID].Status)
	require.Equal(t, []string{event.MembershipExpired}, f.pub.names())

	// The renewal itself now blocks a second sale.
	_, err = f.svc.Create(ctx, CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID})
	require.ErrorIs(t, err, ErrActiveMembershipExists)
}

func TestMembershipCreateRejectsInactiveType(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ctx := context.Background()

	_, err := f.svc.DeactivateType(ctx, f.plan.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID})
	require.ErrorIs(t, err, ErrMembershipTypeInactive)
}

func TestMembershipTypeValidation(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ctx := context.Background()

	name := "Monthly"
	days := 30
	price := int64(100)
	_, err := f.svc.CreateType(ctx, MembershipTypeRequest{Name: &name, DurationDays: &days, PriceCents: &price})
	require.ErrorIs(t, err, ErrMembershipTypeNameTaken)

	other := "Weekly"
	zero := 0
	_, err = f.svc.CreateType(ctx, MembershipTypeRequest{Name: &other, DurationDays: &zero, PriceCents: &price})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMembershipStatusTransitions(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID})
	require.NoError(t, err)

	updated, before, err := f.svc.ChangeStatus(ctx, first.ID, model.MembershipStatusSuspended)
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusSuspended, updated.Status)
	require.Equal(t, model.MembershipStatusActive, before.Status)

	second, err := f.svc.Create(ctx, CreateMembershipRequest{MemberID: f.member.ID, MembershipTypeID: f.plan.ID})
	require.NoError(t, err)

	_, _, err = f.svc.ChangeStatus(ctx, first.ID, model.MembershipStatusActive)
	require.ErrorIs(t, err, ErrActiveMembershipExists)

	_, _, err = f.svc.ChangeStatus(ctx, second.ID, model.MembershipStatusCancelled)
	require.NoError(t, err)

	_, _, err = f.svc.ChangeStatus(ctx, second.ID, model.MembershipStatusActive)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, _, err = f.svc.ChangeStatus(ctx, first.ID, model.MembershipStatusExpired)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, _, err = f.svc.ChangeStatus(ctx, first.ID, model.MembershipStatusActive)
	require.NoError(t, err)
}

func TestMembershipExpireEnded(t *testing.T) {
	f := newMembershipFixture(t, checkInNow)
	ended := f.store.addMembership(f.member.ID, checkInNow.AddDate(0, -2, 0), checkInNow.Add(-time.Second), model.MembershipStatusActive)
	other := f.store.addUser("cy@example.com", model.UserRoleMember, true)
	otherMember := f.store.addMember(other, "QR-CY", checkInNow)
	current := f.store.addMembership(otherMember.ID, checkInNow.AddDate(0, -1, 0), checkInNow, model.MembershipStatusActive)

	expired, err := f.svc.ExpireEnded(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	require.Equal(t, model.MembershipStatusExpired, f.store.memberships[ended.ID].Status)
	require.Equal(t, model.MembershipStatusActive, f.store.memberships[current.ID].Status)

	require.Len(t, f.pub.events, 1)
	require.Equal(t, event.MembershipExpired, f.pub.events[0].name)
	payload, ok := f.pub.events[0].payload.(event.MembershipExpiredPayload)
	require.True(t, ok)
	require.Equal(t, ended.ID.String(), payload.MembershipID)

	again, err := f.svc.ExpireEnded(context.Background())
	require.NoError(t, err)
	require.Zero(t, again)
}
