package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campusnet/internal/models"
)

func doAuthedJSON(t *testing.T, server *Server, method, path, body, accessToken string) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	server.ServeHTTP(rr, req)
	return rr
}

func TestGetMe(t *testing.T) {
	server, database, sender := newTestServer(t)
	seedUniversity(t, database, "State University", "state.edu")
	userID := registerAndVerify(t, server, sender, "alice@state.edu")
	accessToken, _ := login(t, server, "alice@state.edu", "hunter2hunter2")

	rr := doRequestWithBearer(t, server, http.MethodGet, "/api/v1/users/me", accessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var user models.PublicUser
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if user.ID != userID {
		t.Fatalf("user id = %q, want %q", user.ID, userID)
	}
	if user.Email != "alice@state.edu" {
		t.Fatalf("email = %q, want alice@state.edu", user.Email)
	}
	if user.UniversityName != "State University" {
		t.Fatalf("university = %q, want State University", user.UniversityName)
	}
	if user.Profile.FirstName != "Alice" || user.Profile.LastName != "Doe" {
		t.Fatalf("profile name = %q %q, want Alice Doe", user.Profile.FirstName, user.Profile.LastName)
	}
	if !user.IsVerified || !user.IsActive {
		t.Fatalf("flags = verified:%v active:%v, want both true", user.IsVerified, user.IsActive)
	}

	// Credential material never leaks into the JSON body.
	for _, secret := range []string{"passwordHash", "verificationToken", "resetToken"} {
		if strings.Contains(rr.Body.String(), secret) {
			t.Fatalf("response body exposes %s", secret)
		}
	}
}

func TestUpdateMe(t *testing.T) {
	server, database, sender := newTestServer(t)
	seedUniversity(t, database, "State University", "state.edu")
	registerAndVerify(t, server, sender, "alice@state.edu")
	accessToken, _ := login(t, server, "alice@state.edu", "hunter2hunter2")

	rr := doAuthedJSON(t, server, http.MethodPatch, "/api/v1/users/me",
		`{"firstName":"Alicia","bio":"Grad student at State"}`, accessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var user models.PublicUser
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if user.Profile.FirstName != "Alicia" {
		t.Fatalf("first name = %q, want Alicia", user.Profile.FirstName)
	}
	if user.Profile.LastName != "Doe" {
		t.Fatalf("last name = %q, want unchanged Doe", user.Profile.LastName)
	}
	if user.Profile.Bio == nil || *user.Profile.Bio != "Grad student at State" {
		t.Fatalf("bio = %v, want Grad student at State", user.Profile.Bio)
	}
}

func TestUpdateMeStripsMarkup(t *testing.T) {
	server, database, sender := newTestServer(t)
	seedUniversity(t, database, "State University", "state.edu")
	registerAndVerify(t, server, sender, "alice@state.edu")
	accessToken, _ := login(t, server, "alice@state.edu", "hunter2hunter2")

	rr := doAuthedJSON(t, server, http.MethodPatch, "/api/v1/users/me",
		`{"bio":"hi <script>alert(1)</script><b>there</b>"}`, accessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var user models.PublicUser
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if user.Profile.Bio == nil {
		t.Fatalf("bio missing from response")
	}
	if got := *user.Profile.Bio; strings.Contains(got, "<") || strings.Contains(got, "script") {
		t.Fatalf("bio = %q, markup not stripped", got)
	}
}

func TestUpdateMeRejectsBadAvatarURL(t *testing.T) {
	server, database, sender := newTestServer(t)
	seedUniversity(t, database, "State University", "state.edu")
	registerAndVerify(t, server, sender, "alice@state.edu")
	accessToken, _ := login(t, server, "alice@state.edu", "hunter2hunter2")

	rr := doAuthedJSON(t, server, http.MethodPatch, "/api/v1/users/me",
		`{"avatarUrl":"not a url"}`, accessToken)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestUpdateMeRejectsUnknownFields(t *testing.T) {
	server, database, sender := newTestServer(t)
	seedUniversity(t, database, "State University", "state.edu")
	registerAndVerify(t, server, sender, "alice@state.edu")
	accessToken, _ := login(t, server, "alice@state.edu", "hunter2hunter2")

	rr := doAuthedJSON(t, server, http.MethodPatch, "/api/v1/users/me",
		`{"role":"admin"}`, accessToken)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}
