package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymmaster/internal/api/response"
)

const (
	memberEmail    = "ana@example.com"
	memberPassword = "password123"
)

func (e *handlerTestEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return performJSONRequest(t, e.router, http.MethodPost, "/api/v1/auth/login",
		map[string]any{"email": email, "password": password}, nil)
}

func requireSessionCookies(t *testing.T, resp *httptest.ResponseRecorder) (access, refresh *http.Cookie) {
	t.Helper()
	cookies := resp.Result().Cookies()
	access = findCookieByName(cookies, accessTokenCookieName)
	refresh = findCookieByName(cookies, refreshTokenCookieName)
	for _, cookie := range []*http.Cookie{access, refresh} {
		if cookie == nil || cookie.Value == "" {
			t.Fatalf("expected both session cookies, got %+v", cookies)
		}
		if !cookie.HttpOnly || !cookie.Secure {
			t.Fatalf("cookie %s must be Secure and HttpOnly", cookie.Name)
		}
	}
	return access, refresh
}

func TestLogin_IssuesSessionCookies(t *testing.T) {
	env := setupHandlerTestServer(t)
	env.seedMember(t, memberEmail, memberPassword)

	resp := env.login(t, "  ANA@Example.com ", memberPassword)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if body := decodeAPIResponse(t, resp.Body.Bytes()); body.Code != response.CodeSuccess {
		t.Fatalf("expected success code, got %d", body.Code)
	}
	requireSessionCookies(t, resp)
}

func TestLogin_Rejections(t *testing.T) {
	env := setupHandlerTestServer(t)
	env.seedMember(t, memberEmail, memberPassword)
	env.seedMember(t, "inactive@example.com", memberPassword)

	if _, err := env.pool.Exec(context.Background(),
		`UPDATE users SET is_active = FALSE WHERE email = 'inactive@example.com'`); err != nil {
		t.Fatalf("deactivate user: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		status   int
		code     int
	}{
		{"wrong password", memberEmail, "wrong-password", http.StatusUnauthorized, response.ErrPasswordWrong},
		{"unknown email", "ghost@example.com", memberPassword, http.StatusUnauthorized, response.ErrPasswordWrong},
		{"inactive account", "inactive@example.com", memberPassword, http.StatusForbidden, response.ErrUserInactive},
	}
	for _, tc := range cases {
		resp := env.login(t, tc.email, tc.password)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, resp.Code)
		}
		if body := decodeAPIResponse(t, resp.Body.Bytes()); body.Code != tc.code {
			t.Fatalf("%s: expected app code %d, got %d", tc.name, tc.code, body.Code)
		}
	}
}

func TestRefresh_RotatesAndRejectsStaleToken(t *testing.T) {
	env := setupHandlerTestServer(t)
	env.seedMember(t, memberEmail, memberPassword)

	_, firstRefresh := requireSessionCookies(t, env.login(t, memberEmail, memberPassword))

	rotated := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/refresh", nil, []*http.Cookie{firstRefresh})
	if rotated.Code != http.StatusOK {
		t.Fatalf("expected refresh status 200, got %d", rotated.Code)
	}
	_, secondRefresh := requireSessionCookies(t, rotated)
	if secondRefresh.Value == firstRefresh.Value {
		t.Fatal("refresh token was not rotated")
	}

	stale := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/refresh", nil, []*http.Cookie{firstRefresh})
	if stale.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale token status 401, got %d", stale.Code)
	}
	if body := decodeAPIResponse(t, stale.Body.Bytes()); body.Code != response.ErrUnauthorized {
		t.Fatalf("expected app code %d, got %d", response.ErrUnauthorized, body.Code)
	}
}

func TestChangePassword_RevokesRefreshTokens(t *testing.T) {
	env := setupHandlerTestServer(t)
	env.seedMember(t, memberEmail, memberPassword)

	access, refresh := requireSessionCookies(t, env.login(t, memberEmail, memberPassword))

	wrong := performJSONRequest(t, env.router, http.MethodPut, "/api/v1/auth/password",
		map[string]any{"current_password": "not-it", "new_password": "brand-new-pass"},
		[]*http.Cookie{access})
	if wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for wrong current password, got %d", wrong.Code)
	}

	changed := performJSONRequest(t, env.router, http.MethodPut, "/api/v1/auth/password",
		map[string]any{"current_password": memberPassword, "new_password": "brand-new-pass"},
		[]*http.Cookie{access})
	if changed.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", changed.Code, changed.Body.String())
	}

	revoked := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/refresh", nil, []*http.Cookie{refresh})
	if revoked.Code != http.StatusUnauthorized {
		t.Fatalf("expected old refresh token to be revoked, got %d", revoked.Code)
	}

	if resp := env.login(t, memberEmail, memberPassword); resp.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: %d", resp.Code)
	}
	if resp := env.login(t, memberEmail, "brand-new-pass"); resp.Code != http.StatusOK {
		t.Fatalf("new password rejected: %d", resp.Code)
	}
}

func TestRegister_SignsInAndRejectsDuplicateEmail(t *testing.T) {
	env := setupHandlerTestServer(t)

	payload := func(email string) map[string]any {
		return map[string]any{
			"email":      email,
			"password":   memberPassword,
			"first_name": "Luis",
			"last_name":  "Garcia",
		}
	}

	created := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/register", payload("new@example.com"), nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", created.Code, created.Body.String())
	}
	requireSessionCookies(t, created)

	dup := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/register", payload("NEW@example.com"), nil)
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected duplicate email status 409, got %d", dup.Code)
	}
	if body := decodeAPIResponse(t, dup.Body.Bytes()); body.Code != response.ErrEmailInUse {
		t.Fatalf("expected app code %d, got %d", response.ErrEmailInUse, body.Code)
	}

	short := payload("short@example.com")
	short["password"] = "short"
	if resp := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/auth/register", short, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected weak password status 400, got %d", resp.Code)
	}
}
