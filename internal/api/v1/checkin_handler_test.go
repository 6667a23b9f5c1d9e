package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"gymmaster/internal/api/response"
	"gymmaster/internal/model"
)

func TestCheckIn_QRFlow_OpenThenClose(t *testing.T) {
	env := setupHandlerTestServer(t)
	member, branch := env.seedMember(t, "ana@example.com", "password123")
	asMember := env.bearerFor(t, member.UserID, model.UserRoleMember)

	payload := map[string]any{"qr_code": member.QRCode, "branch_id": branch.ID.String()}
	first := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/checkins", payload, nil, asMember)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", first.Code, first.Body.String())
	}

	var visit struct {
		ID       uuid.UUID `json:"id"`
		MemberID uuid.UUID `json:"member_id"`
	}
	if err := json.Unmarshal(decodeAPIResponse(t, first.Body.Bytes()).Data, &visit); err != nil {
		t.Fatalf("decode check-in: %v", err)
	}
	if visit.MemberID != member.ID {
		t.Fatalf("expected visit for member %s, got %s", member.ID, visit.MemberID)
	}

	second := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/checkins", payload, nil, asMember)
	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for second open visit, got %d", second.Code)
	}
	if body := decodeAPIResponse(t, second.Body.Bytes()); body.Code != response.ErrVisitAlreadyOpen {
		t.Fatalf("expected app code %d, got %d", response.ErrVisitAlreadyOpen, body.Code)
	}

	checkoutPath := "/api/v1/checkins/" + visit.ID.String() + "/checkout"
	closed := performJSONRequest(t, env.router, http.MethodPut, checkoutPath, nil, nil, asMember)
	if closed.Code != http.StatusOK {
		t.Fatalf("expected checkout status 200, got %d: %s", closed.Code, closed.Body.String())
	}

	again := performJSONRequest(t, env.router, http.MethodPut, checkoutPath, nil, nil, asMember)
	if again.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for repeated checkout, got %d", again.Code)
	}
	if body := decodeAPIResponse(t, again.Body.Bytes()); body.Code != response.ErrAlreadyClosed {
		t.Fatalf("expected app code %d, got %d", response.ErrAlreadyClosed, body.Code)
	}

	reopened := performJSONRequest(t, env.router, http.MethodPost, "/api/v1/checkins", payload, nil, asMember)
	if reopened.Code != http.StatusCreated {
		t.Fatalf("expected a new visit after checkout, got %d", reopened.Code)
	}
}

func TestCheckIn_UnknownQRCode_Returns404(t *testing.T) {
	env := setupHandlerTestServer(t)
	member, branch := env.seedMember(t, "ana@example.com", "password123")

	resp := performJSONRequest(
		t,
		env.router,
		http.MethodPost,
		"/api/v1/checkins",
		map[string]any{"qr_code": "not-a-real-token", "branch_id": branch.ID.String()},
		nil,
		env.bearerFor(t, member.UserID, model.UserRoleMember),
	)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if body := decodeAPIResponse(t, resp.Body.Bytes()); body.Code != response.ErrInvalidToken {
		t.Fatalf("expected app code %d, got %d", response.ErrInvalidToken, body.Code)
	}
}

func TestCheckIn_RequiresAuthentication(t *testing.T) {
	env := setupHandlerTestServer(t)

	resp := performJSONRequest(
		t,
		env.router,
		http.MethodPost,
		"/api/v1/checkins",
		map[string]any{"qr_code": "anything", "branch_id": uuid.NewString()},
		nil,
	)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestCheckOut_OtherMembersVisit_Forbidden(t *testing.T) {
	env := setupHandlerTestServer(t)
	owner, branch := env.seedMember(t, "ana@example.com", "password123")
	stranger, _ := env.seedMember(t, "luis@example.com", "password123")

	opened := performJSONRequest(
		t,
		env.router,
		http.MethodPost,
		"/api/v1/checkins",
		map[string]any{"qr_code": owner.QRCode, "branch_id": branch.ID.String()},
		nil,
		env.bearerFor(t, owner.UserID, model.UserRoleMember),
	)
	if opened.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", opened.Code, opened.Body.String())
	}
	var visit struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(decodeAPIResponse(t, opened.Body.Bytes()).Data, &visit); err != nil {
		t.Fatalf("decode check-in: %v", err)
	}

	resp := performJSONRequest(
		t,
		env.router,
		http.MethodPut,
		"/api/v1/checkins/"+visit.ID.String()+"/checkout",
		nil,
		nil,
		env.bearerFor(t, stranger.UserID, model.UserRoleMember),
	)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}

	staff := performJSONRequest(
		t,
		env.router,
		http.MethodPut,
		"/api/v1/checkins/"+visit.ID.String()+"/checkout",
		nil,
		nil,
		env.bearerFor(t, uuid.New(), model.UserRoleEmployee),
	)
	if staff.Code != http.StatusOK {
		t.Fatalf("expected staff checkout status 200, got %d: %s", staff.Code, staff.Body.String())
	}
}

func TestActiveVisits_StaffOnly(t *testing.T) {
	env := setupHandlerTestServer(t)
	member, _ := env.seedMember(t, "ana@example.com", "password123")

	resp := performJSONRequest(
		t,
		env.router,
		http.MethodGet,
		"/api/v1/checkins/active",
		nil,
		nil,
		env.bearerFor(t, member.UserID, model.UserRoleMember),
	)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for member, got %d", resp.Code)
	}

	resp = performJSONRequest(
		t,
		env.router,
		http.MethodGet,
		"/api/v1/checkins/active",
		nil,
		nil,
		env.bearerFor(t, uuid.New(), model.UserRoleAdmin),
	)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for admin, got %d: %s", resp.Code, resp.Body.String())
	}
}
