package v1

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/model"
	"gymmaster/internal/repository/postgres"
	"gymmaster/internal/service"
	jwtutil "gymmaster/pkg/jwt"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type handlerTestEnv struct {
	router     *gin.Engine
	pool       *pgxpool.Pool
	privateKey *rsa.PrivateKey
	members    *service.MemberService
}

func setupHandlerTestServer(t *testing.T) *handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := startPostgresForHandlerTest(t)
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	userRepo := postgres.NewUserRepository(pool)
	memberRepo := postgres.NewMemberRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)
	branchRepo := postgres.NewBranchRepository(pool)
	checkInRepo := postgres.NewCheckInRepository(pool)

	memberSvc := service.NewMemberService(memberRepo, userRepo, membershipRepo, 24*time.Hour)
	authSvc := service.NewAuthService(userRepo, memberSvc, pool, privateKey, nil, nil, service.AuthConfig{
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, nil)
	checkInSvc := service.NewCheckInService(memberRepo, membershipRepo, branchRepo, checkInRepo, nil, nil)

	opts := RouteOptions{
		PublicKey:        &privateKey.PublicKey,
		RateStore:        middleware.NewMemoryStore(),
		LoginPerMinute:   100,
		CheckInPerMinute: 100,
	}

	router := gin.New()
	group := router.Group("/api/v1")
	RegisterAuthRoutes(group, authSvc, 24*time.Hour, opts)
	RegisterCheckInRoutes(group, checkInSvc, memberSvc, 0, opts)

	return &handlerTestEnv{
		router:     router,
		pool:       pool,
		privateKey: privateKey,
		members:    memberSvc,
	}
}

// seedMember creates a member account with an active membership at a fresh branch.
func (e *handlerTestEnv) seedMember(t *testing.T, email, password string) (*model.Member, *model.Branch) {
	t.Helper()
	ctx := context.Background()

	member, err := e.members.Create(ctx, service.CreateMemberRequest{
		Email:     email,
		Password:  password,
		FirstName: "Ana",
		LastName:  "Lopez",
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	now := time.Now().UTC()
	branch := &model.Branch{
		ID:          uuid.New(),
		Name:        "Centro " + uuid.NewString()[:8],
		Address:     "Av. Principal 100",
		OpeningTime: "06:00",
		ClosingTime: "22:00",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := postgres.NewBranchRepository(e.pool).Create(ctx, branch); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	membershipType := &model.MembershipType{
		ID:           uuid.New(),
		Name:         "Monthly " + uuid.NewString()[:8],
		DurationDays: 30,
		PriceCents:   4500,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := postgres.NewMembershipTypeRepository(e.pool).Create(ctx, membershipType); err != nil {
		t.Fatalf("create membership type: %v", err)
	}

	membership := &model.Membership{
		ID:               uuid.New(),
		MemberID:         member.ID,
		MembershipTypeID: membershipType.ID,
		StartDate:        now.Add(-time.Hour),
		EndDate:          now.AddDate(0, 0, 30),
		Status:           model.MembershipStatusActive,
		PriceCents:       membershipType.PriceCents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := postgres.NewMembershipRepository(e.pool).Create(ctx, membership); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	return member, branch
}

func (e *handlerTestEnv) bearerFor(t *testing.T, userID uuid.UUID, role model.UserRole) http.Header {
	t.Helper()

	claims := jwtutil.NewClaims(userID.String(), string(role), "", time.Hour)
	token, err := jwtutil.GenerateAccessToken(claims, e.privateKey)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header
}

func performJSONRequest(
	t *testing.T,
	router http.Handler,
	method string,
	path string,
	payload map[string]any,
	cookies []*http.Cookie,
	headers ...http.Header,
) *httptest.ResponseRecorder {
	t.Helper()

	var bodyBytes []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		bodyBytes = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	for _, header := range headers {
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
	}
	for _, cookie := range cookies {
		if cookie != nil {
			req.AddCookie(cookie)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeAPIResponse(t *testing.T, raw []byte) apiResponse {
	t.Helper()

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return resp
}

func findCookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func startPostgresForHandlerTest(t *testing.T) *pgxpool.Pool {
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
		if err = pool.Ping(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres did not become ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	applyMigrations(t, ctx, pool)
	return pool
}

func applyMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
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
		_, statErr := os.Stat(filepath.Join(dir, "go.mod"))
		if statErr == nil {
			return dir
		}
		if !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("stat go.mod: %v", statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not locate repository root")
		}
		dir = parent
	}
}
