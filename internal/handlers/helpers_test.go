package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/tokens"
	"storefront/internal/users"
)

const testSecret = "handlers-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

/* =========================
   FAKE STORES
========================= */

type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[primitive.ObjectID]*models.User{}}
}

func (s *memUsers) add(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByLogin(_ context.Context, email, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (email != "" && u.Email == email) || (phone != "" && u.Phone == phone) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUsers) Exists(ctx context.Context, email, phone string) (bool, error) {
	u, err := s.FindByLogin(ctx, email, phone)
	return u != nil, err
}

func (s *memUsers) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUsers) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if v, ok := set["name"].(string); ok {
		u.Name = v
	}
	if v, ok := set["city"].(string); ok {
		u.City = v
	}
	cp := *u
	return &cp, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[primitive.ObjectID]models.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[primitive.ObjectID]models.RefreshToken{}}
}

func (s *memTokens) Insert(_ context.Context, t *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ID] = *t
	return nil
}

func (s *memTokens) FindByID(_ context.Context, id primitive.ObjectID) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, tokens.ErrNotFound
	}
	return &t, nil
}

func (s *memTokens) MarkRotated(_ context.Context, id, replacedBy primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.Revoked || t.RotatedAt != nil {
		return false, nil
	}
	t.Revoked = true
	t.RotatedAt = &at
	t.ReplacedBy = &replacedBy
	s.tokens[id] = t
	return true, nil
}

func (s *memTokens) Revoke(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.Revoked = true
		s.tokens[id] = t
	}
	return nil
}

func (s *memTokens) RevokeAllForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			s.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (s *memTokens) active(userID primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

/* =========================
   HELPERS
========================= */

type testEnv struct {
	users   *memUsers
	tokens  *memTokens
	signer  *auth.Signer
	metrics *metrics.Metrics
	session Session
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:   newMemUsers(),
		tokens:  newMemTokens(),
		signer:  auth.NewSigner(testSecret, time.Minute),
		metrics: metrics.New("test"),
	}
	env.session = Session{
		Users:   env.users,
		Signer:  env.signer,
		Tokens:  tokens.NewManager(env.tokens, time.Hour, logger.NewNop(), tokens.WithHashCost(4)),
		Cookies: auth.Cookies{},
		Metrics: env.metrics,
		Log:     logger.NewNop(),
	}
	return env
}

func (e *testEnv) bearer(t *testing.T, id primitive.ObjectID, role string) string {
	t.Helper()
	token, _, err := e.signer.Issue(id, role, "")
	require.NoError(t, err)
	return "Bearer " + token
}

type request struct {
	method  string
	path    string
	body    interface{}
	auth    string
	cookies []*http.Cookie
}

func serve(t *testing.T, r *gin.Engine, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &buf)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth != "" {
		httpReq.Header.Set("Authorization", req.auth)
	}
	for _, ck := range req.cookies {
		httpReq.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
