package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"campusnet/internal/config"
	"campusnet/internal/db"
	"campusnet/internal/models"
)

type fakeEmailSender struct {
	mu                 sync.Mutex
	verificationTokens map[string]string
	resetTokens        map[string]string
}

func newFakeEmailSender() *fakeEmailSender {
	return &fakeEmailSender{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (f *fakeEmailSender) SendVerificationEmail(to, firstName, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verificationTokens[to] = token
	return nil
}

func (f *fakeEmailSender) SendPasswordResetEmail(to, firstName, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetTokens[to] = token
	return nil
}

func (f *fakeEmailSender) verificationToken(to string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verificationTokens[to]
}

func (f *fakeEmailSender) resetToken(to string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetTokens[to]
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.AccessTokenSecret = strings.Repeat("a", 32)
	cfg.Auth.RefreshTokenSecret = strings.Repeat("r", 32)
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Auth.ResetTokenTTL = time.Hour
	cfg.Auth.RotationWindow = 24 * time.Hour
	cfg.Auth.BcryptCost = 4 // keep tests fast
	cfg.Auth.HashWorkers = 2
	return cfg
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func newTestServer(t *testing.T) (*Server, *db.DB, *fakeEmailSender) {
	t.Helper()

	database := openTestDB(t)
	sender := newFakeEmailSender()

	server, err := NewServer(testConfig(), database, sender)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return server, database, sender
}

func seedUniversity(t *testing.T, database *db.DB, name string, domains ...string) *models.University {
	t.Helper()

	u := &models.University{Name: name, Domains: domains}
	if err := db.NewUniversityRepository(database).Create(context.Background(), u); err != nil {
		t.Fatalf("creating university: %v", err)
	}
	return u
}

func doRequest(t *testing.T, server *Server, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "campusnet-test")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func refreshCookieFrom(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rr.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func registerAndVerify(t *testing.T, server *Server, sender *fakeEmailSender, email string) string {
	t.Helper()

	body := `{"email":"` + email + `","username":"alice","firstName":"Alice","lastName":"Doe","password":"hunter2hunter2","confirmPassword":"hunter2hunter2"}`
	rr := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d, body=%q", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp RegisterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	token := sender.verificationToken(email)
	if token == "" {
		t.Fatalf("no verification email recorded for %s", email)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/v1/auth/verify-email?token="+token, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("verify status = %d, want %d, body=%q", rr.Code, http.StatusCreated, rr.Body.String())
	}

	return resp.UserID
}

func login(t *testing.T, server *Server, email, password string) (string, *http.Cookie) {
	t.Helper()

	rr := doRequest(t, server, http.MethodPost, "/api/v1/auth/login",
		`{"email":"`+email+`","password":"`+password+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("login response has no access token")
	}

	cookie := refreshCookieFrom(t, rr)
	if cookie == nil {
		t.Fatalf("login response has no %s cookie", refreshCookieName)
	}

	return resp.AccessToken, cookie
}
