package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

func TestFindByEmail_CaseInsensitive(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	user := newTestUser("Mixed.Case@Example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "mixed.case@example.com" {
		t.Fatalf("expected stored email to be lower-cased, got %q", user.Email)
	}

	got, err := repo.FindByEmail(ctx, "MIXED.case@example.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	dup := newTestUser("mixed.case@EXAMPLE.com")
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	missing, err := repo.FindByEmail(ctx, "missing@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil user, got %+v", missing)
	}
}

func TestCreateWithUser_RollsBackOnMemberConflict(t *testing.T) {
	pool := startPostgresForTest(t)
	users := NewUserRepository(pool)
	members := NewMemberRepository(pool)
	ctx := context.Background()

	first := newTestMember()
	if err := members.CreateWithUser(ctx, newTestUser("first@example.com"), first); err != nil {
		t.Fatalf("create first member: %v", err)
	}
	if first.User == nil || first.User.Email != "first@example.com" {
		t.Fatalf("expected joined user on created member, got %+v", first.User)
	}

	second := newTestMember()
	second.MembershipNumber = first.MembershipNumber
	err := members.CreateWithUser(ctx, newTestUser("second@example.com"), second)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := users.FindByEmail(ctx, "second@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user insert to be rolled back, got %v", err)
	}
}

func TestOneOpenVisitPerMember_ConcurrentInserts(t *testing.T) {
	pool := startPostgresForTest(t)
	ctx := context.Background()
	member, branch := seedMemberAndBranch(t, pool)
	repo := NewCheckInRepository(pool)

	const workers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- repo.Create(ctx, &model.CheckIn{
				MemberID:  member.ID,
				BranchID:  branch.ID,
				CheckInAt: time.Now().UTC(),
			})
		}()
	}
	wg.Wait()
	close(errCh)

	var ok, conflicts int
	for err := range errCh {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 insert and %d conflicts, got %d and %d", workers-1, ok, conflicts)
	}
}

func TestCheckInClose_IsGuarded(t *testing.T) {
	pool := startPostgresForTest(t)
	ctx := context.Background()
	member, branch := seedMemberAndBranch(t, pool)
	repo := NewCheckInRepository(pool)

	visit := &model.CheckIn{MemberID: member.ID, BranchID: branch.ID, CheckInAt: time.Now().UTC().Add(-time.Hour)}
	if err := repo.Create(ctx, visit); err != nil {
		t.Fatalf("create visit: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.Close(ctx, visit.ID, now, nil); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := repo.Close(ctx, visit.ID, now.Add(time.Minute), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second close, got %v", err)
	}

	got, err := repo.FindByID(ctx, visit.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.CheckOutAt == nil || !got.CheckOutAt.Equal(now.Truncate(time.Microsecond)) {
		t.Fatalf("expected first check-out time to stick, got %v", got.CheckOutAt)
	}
}

func TestCloseStale_StrictBoundary(t *testing.T) {
	pool := startPostgresForTest(t)
	ctx := context.Background()
	repo := NewCheckInRepository(pool)
	now := time.Now().UTC().Truncate(time.Second)
	cutoff := now.Add(-24 * time.Hour)

	exact, branch := seedMemberAndBranch(t, pool)
	if err := repo.Create(ctx, &model.CheckIn{MemberID: exact.ID, BranchID: branch.ID, CheckInAt: cutoff}); err != nil {
		t.Fatalf("create exact visit: %v", err)
	}
	older := seedMember(t, pool)
	if err := repo.Create(ctx, &model.CheckIn{MemberID: older.ID, BranchID: branch.ID, CheckInAt: cutoff.Add(-time.Second)}); err != nil {
		t.Fatalf("create older visit: %v", err)
	}

	closed, err := repo.CloseStale(ctx, cutoff, now, "Auto-closed")
	if err != nil {
		t.Fatalf("CloseStale: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed visit, got %d", closed)
	}
	if _, err := repo.FindOpenByMember(ctx, exact.ID); err != nil {
		t.Fatalf("expected visit at the cutoff to stay open: %v", err)
	}

	again, err := repo.CloseStale(ctx, cutoff, now, "Auto-closed")
	if err != nil || again != 0 {
		t.Fatalf("expected second sweep to close nothing, got %d (%v)", again, err)
	}
}

func TestOneActiveMembershipPerMember(t *testing.T) {
	pool := startPostgresForTest(t)
	ctx := context.Background()
	member, _ := seedMemberAndBranch(t, pool)

	types := NewMembershipTypeRepository(pool)
	plan := &model.MembershipType{Name: "Monthly", DurationDays: 30, PriceCents: 4900, IsActive: true}
	if err := types.Create(ctx, plan); err != nil {
		t.Fatalf("create membership type: %v", err)
	}

	repo := NewMembershipRepository(pool)
	start := time.Now().UTC()
	newMembership := func() *model.Membership {
		return &model.Membership{
			MemberID:         member.ID,
			MembershipTypeID: plan.ID,
			StartDate:        start,
			EndDate:          start.AddDate(0, 0, 30),
			Status:           model.MembershipStatusActive,
			PriceCents:       plan.PriceCents,
		}
	}

	first := newMembership()
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	if err := repo.Create(ctx, newMembership()); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for second active membership, got %v", err)
	}

	if _, err := repo.FindCovering(ctx, member.ID, start); err != nil {
		t.Fatalf("FindCovering at start: %v", err)
	}
	if _, err := repo.FindCovering(ctx, member.ID, start.AddDate(0, 0, 31)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no covering membership after end, got %v", err)
	}
}

func TestAuditRepository_RoundTripAndRetention(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewAuditRepository(pool)
	ctx := context.Background()

	entityID := uuid.NewString()
	old := &model.AuditLog{
		Action:    model.AuditActionUpdate,
		Entity:    "Branch",
		EntityID:  &entityID,
		OldValues: map[string]interface{}{"name": "Old"},
		NewValues: map[string]interface{}{"name": "New", "password": "[REDACTED]"},
		CreatedAt: time.Now().UTC().AddDate(0, 0, -100),
	}
	recent := &model.AuditLog{
		Action:    model.AuditActionCreate,
		Entity:    "Branch",
		EntityID:  &entityID,
		CreatedAt: time.Now().UTC(),
	}
	for _, item := range []*model.AuditLog{old, recent} {
		if err := repo.Create(ctx, item); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	entity := "Branch"
	items, err := repo.List(ctx, repository.AuditListFilter{Entity: &entity, EntityID: &entityID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].ID != recent.ID {
		t.Fatalf("expected newest entry first, got %+v", items)
	}
	if items[1].NewValues["password"] != "[REDACTED]" {
		t.Fatalf("expected json values to round trip, got %+v", items[1].NewValues)
	}

	deleted, err := repo.DeleteBefore(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
}

func newTestUser(email string) *model.User {
	return &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         model.UserRoleMember,
		IsActive:     true,
	}
}

func newTestMember() *model.Member {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return &model.Member{
		ID:               uuid.New(),
		MembershipNumber: "GM-2026-" + suffix[:6],
		QRCode:           "GMQR-" + suffix,
		QRCodeExpiry:     time.Now().UTC().Add(24 * time.Hour),
		IsActive:         true,
	}
}

func seedMember(t *testing.T, pool *pgxpool.Pool) *model.Member {
	t.Helper()
	member := newTestMember()
	user := newTestUser(strings.ToLower(member.QRCode) + "@example.com")
	if err := NewMemberRepository(pool).CreateWithUser(context.Background(), user, member); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return member
}

func seedMemberAndBranch(t *testing.T, pool *pgxpool.Pool) (*model.Member, *model.Branch) {
	t.Helper()
	branch := &model.Branch{
		ID:          uuid.New(),
		Name:        "Branch " + uuid.NewString()[:8],
		Address:     "1 Main St",
		OpeningTime: "06:00",
		ClosingTime: "22:00",
		IsActive:    true,
	}
	if err := NewBranchRepository(pool).Create(context.Background(), branch); err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	return seedMember(t, pool), branch
}

func startPostgresForTest(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "gymmaster_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping test because docker/testcontainers is unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/gymmaster_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	deadline := time.Now().Add(30 * time.Second)
	for {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres did not become ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	applyAllMigrations(t, ctx, pool)
	return pool
}

func applyAllMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join(findRepoRoot(t), "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		// #nosec G304 -- migration file list comes from controlled test directory.
		raw, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			t.Fatalf("read migration %s: %v", file, err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(raw)); err != nil {
			t.Fatalf("apply migration %s: %v", file, err)
		}
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not locate repository root")
		}
		dir = parent
	}
}
