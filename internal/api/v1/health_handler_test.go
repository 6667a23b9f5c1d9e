package v1

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newHealthRouter(db Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterHealthRoutes(router, db, time.Second, "s3cret")
	return router
}

func TestHealth_LiveAlwaysOK(t *testing.T) {
	router := newHealthRouter(stubPinger{err: errors.New("down")})

	for _, path := range []string{"/health", "/api/v1/health"} {
		resp := performJSONRequest(t, router, http.MethodGet, path, nil, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, resp.Code)
		}
	}
}

func TestHealth_ReadyReflectsDatabase(t *testing.T) {
	ready := performJSONRequest(t, newHealthRouter(stubPinger{}), http.MethodGet, "/health/ready", nil, nil)
	if ready.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", ready.Code)
	}

	down := performJSONRequest(t, newHealthRouter(stubPinger{err: errors.New("refused")}), http.MethodGet, "/api/v1/health/ready", nil, nil)
	if down.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", down.Code)
	}

	missing := performJSONRequest(t, newHealthRouter(nil), http.MethodGet, "/health/ready", nil, nil)
	if missing.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 without a database, got %d", missing.Code)
	}
}

func TestMetrics_RequiresInternalToken(t *testing.T) {
	router := newHealthRouter(stubPinger{})

	denied := performJSONRequest(t, router, http.MethodGet, "/internal/metrics", nil, nil)
	if denied.Code == http.StatusOK {
		t.Fatal("expected metrics to be rejected without a token")
	}

	header := http.Header{}
	header.Set("X-Internal-Token", "s3cret")
	allowed := performJSONRequest(t, router, http.MethodGet, "/internal/metrics", nil, nil, header)
	if allowed.Code != http.StatusOK {
		t.Fatalf("expected status 200 with token, got %d", allowed.Code)
	}
}
