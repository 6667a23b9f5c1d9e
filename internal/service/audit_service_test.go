package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gymmaster/internal/model"
)

func TestAuditCleanup(t *testing.T) {
	s := newStore()
	repo := &fakeAuditRepo{s: s}
	svc := NewAuditService(repo, 0, nil).WithClock(fixedClock(checkInNow))
	ctx := context.Background()

	for _, age := range []int{1, 89, 91, 400} {
		require.NoError(t, repo.Create(ctx, &model.AuditLog{
			Action:    model.AuditActionCreate,
			Entity:    "Member",
			CreatedAt: checkInNow.AddDate(0, 0, -age),
		}))
	}

	_, err := svc.Cleanup(ctx, -1)
	require.ErrorIs(t, err, ErrInvalidAuditInput)

	deleted, err := svc.Cleanup(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
	require.Equal(t, checkInNow.AddDate(0, 0, -90), repo.lastCutoff)

	deleted, err = svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	require.Len(t, s.audits, 1)
}

func TestAuditEntityHistoryAndStats(t *testing.T) {
	s := newStore()
	repo := &fakeAuditRepo{s: s}
	svc := NewAuditService(repo, 90, nil).WithClock(fixedClock(checkInNow))
	ctx := context.Background()

	id := "4f7c"
	require.NoError(t, repo.Create(ctx, &model.AuditLog{Action: model.AuditActionUpdate, Entity: "Branch", EntityID: &id, CreatedAt: checkInNow}))
	require.NoError(t, repo.Create(ctx, &model.AuditLog{Action: model.AuditActionUpdate, Entity: "Member", EntityID: &id, CreatedAt: checkInNow}))

	items, total, err := svc.EntityHistory(ctx, "Branch", id, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)

	_, _, err = svc.EntityHistory(ctx, "", id, 1, 20)
	require.ErrorIs(t, err, ErrInvalidAuditInput)

	from := checkInNow
	to := checkInNow.Add(-time.Minute)
	_, _, err = svc.List(ctx, AuditFilter{From: &from, To: &to}, 1, 20)
	require.ErrorIs(t, err, ErrInvalidAuditInput)

	stats, err := svc.Stats(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Total)
	require.Equal(t, checkInNow.AddDate(0, 0, -7), repo.lastSince)

	_, err = svc.Stats(ctx, -3)
	require.ErrorIs(t, err, ErrInvalidAuditInput)
}
