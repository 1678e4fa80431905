package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/C-W-Wong/omni-erp-sub000/internal/auth"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	if s.sessions == nil {
		s.sessions = map[string]int64{}
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

// testServer mounts the auth routes behind a middleware that loads one
// shared session per test, standing in for the app session middleware.
type testServer struct {
	router   chi.Router
	sessions *shared.SessionManager
	sess     *shared.Session
}

func newTestServer(t *testing.T, repo auth.Repository) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessions, csrf)

	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	// Load assigns IDs at commit time; pin one so session registration runs.
	sess.ID = "sess-test-0001"

	ts := &testServer{sessions: sessions, sess: sess}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), ts.sess)))
		})
	})
	router.Route("/api/auth", handler.MountRoutes)
	ts.router = router
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	res := httptest.NewRecorder()
	ts.router.ServeHTTP(res, req)
	return res
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{ID: 42, Email: "ops@trade.local", Name: "Ops", PasswordHash: string(hash), IsActive: true}
}

func TestLoginIssuesSessionAndToken(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse-9")}
	ts := newTestServer(t, repo)

	res := ts.do(http.MethodPost, "/api/auth/login", `{"email":"ops@trade.local","password":"correct-horse-9"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		User      *auth.User `json:"user"`
		CSRFToken string     `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, int64(42), payload.User.ID)
	require.NotEmpty(t, payload.CSRFToken)
	require.Equal(t, int64(42), ts.sess.UserID())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t, &stubRepo{user: activeUser(t, "correct-horse-9")})

	res := ts.do(http.MethodPost, "/api/auth/login", `{"email":"ops@trade.local","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := activeUser(t, "correct-horse-9")
	user.IsActive = false
	ts := newTestServer(t, &stubRepo{user: user})

	res := ts.do(http.MethodPost, "/api/auth/login", `{"email":"ops@trade.local","password":"correct-horse-9"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t, &stubRepo{user: activeUser(t, "correct-horse-9")})

	res := ts.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMeRequiresLogin(t *testing.T) {
	ts := newTestServer(t, &stubRepo{})

	res := ts.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeReturnsCurrentUser(t *testing.T) {
	ts := newTestServer(t, &stubRepo{user: activeUser(t, "correct-horse-9")})
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/login", `{"email":"ops@trade.local","password":"correct-horse-9"}`).Code)

	res := ts.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"user_id":42`)
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse-9")}
	ts := newTestServer(t, repo)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/login", `{"email":"ops@trade.local","password":"correct-horse-9"}`).Code)
	sessionID := ts.sess.ID
	require.Contains(t, repo.sessions, sessionID)

	res := ts.do(http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.NotContains(t, repo.sessions, sessionID)
}

func TestRequireAuthBlocksAnonymous(t *testing.T) {
	ts := newTestServer(t, &stubRepo{})

	protected := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), ts.sess))
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	ts.sess.SetUser(7)
	authedRes := httptest.NewRecorder()
	protected.ServeHTTP(authedRes, req)
	require.Equal(t, http.StatusOK, authedRes.Code)
}
