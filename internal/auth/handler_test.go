package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
	_ "github.com/soliel-ai/soliel/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]*auth.Session
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*auth.User, error) {
	s.user = &auth.User{ID: 1, Email: email, FullName: fullName, PasswordHash: passwordHash, IsActive: true}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]*auth.Session)
	}
	s.sessions[id] = &auth.Session{ID: id, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *stubRepo) GetActiveSession(ctx context.Context, id string) (*auth.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return sess, nil
}

func (s *stubRepo) RevokeSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) ConsumeOneTimeToken(ctx context.Context, tokenType auth.OneTimeTokenType, tokenHash string) (int64, error) {
	return 0, shared.ErrNotFound
}

func (s *stubRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	if s.user == nil || s.user.ID != userID {
		return shared.ErrNotFound
	}
	s.user.PasswordHash = passwordHash
	return nil
}

var _ auth.Repository = (*stubRepo)(nil)

func newTestRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	homeFor := func(*http.Request, int64) string { return "/student-dashboard" }
	handler := auth.NewHandler(logger, auth.NewService(repo), templates, sessionManager, csrfManager, homeFor)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
			sess, err := sessionManager.Load(rq.Context(), rq)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(rq.Context(), sess)
			next.ServeHTTP(w, rq.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

func TestSignInPageRendersForm(t *testing.T) {
	router, _ := newTestRouter(t, &stubRepo{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/sign-in", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected sign-in form in body")
	}
}

func TestSignInPageShowsRedirectCodeMessage(t *testing.T) {
	router, _ := newTestRouter(t, &stubRepo{})

	cases := map[string]string{
		"access_denied":    "do not have access",
		"missing_token":    "missing its token",
		"invalid_token":    "not valid",
		"expired_token":    "has expired",
		"already_accepted": "already been used",
	}
	for code, want := range cases {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/sign-in?error="+code, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", code, res.Code)
		}
		if !strings.Contains(res.Body.String(), want) {
			t.Fatalf("%s: expected message containing %q", code, want)
		}
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	router, _ := newTestRouter(t, &stubRepo{
		user: &auth.User{ID: 1, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true},
	})

	form := url.Values{}
	form.Set("email", "user@test.local")
	form.Set("password", "wrong-password")
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Email or password is not valid") {
		t.Fatalf("expected error message in response")
	}
}

func TestSignInSuccessRedirectsHome(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{
		user: &auth.User{ID: 7, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true},
	}
	router, _ := newTestRouter(t, repo)

	form := url.Values{}
	form.Set("email", "user@test.local")
	form.Set("password", "correct-password")
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/student-dashboard" {
		t.Fatalf("expected redirect to /student-dashboard, got %s", got)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(repo.sessions))
	}
}

func TestConfirmWithBadTokenRedirectsWithCode(t *testing.T) {
	router, _ := newTestRouter(t, &stubRepo{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/confirm?token_hash=nope&type=recovery&next=/reset-password", nil))

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	loc := res.Header().Get("Location")
	if !strings.Contains(loc, "error=access_denied") || !strings.Contains(loc, "error_code=otp_expired") {
		t.Fatalf("expected failure codes in redirect, got %s", loc)
	}
}
