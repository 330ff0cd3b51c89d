package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibistek-uty/incubation-api/internal/api/http/handlers"
	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/domain"
	"github.com/ibistek-uty/incubation-api/internal/observability"
	"github.com/ibistek-uty/incubation-api/internal/persistence"
	"github.com/ibistek-uty/incubation-api/internal/repository"
	"github.com/ibistek-uty/incubation-api/internal/service"
)

type memoryUserRepository struct {
	users  map[string]*domain.User
	nextID int
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) List(_ context.Context, filter repository.UserListFilter) ([]*domain.User, int, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		clone := *user
		out = append(out, &clone)
	}
	return out, len(out), nil
}

type memoryResetRepository struct {
	tokens map[string]*repository.PasswordResetToken
	nextID int
}

func newMemoryResetRepository() *memoryResetRepository {
	return &memoryResetRepository{tokens: make(map[string]*repository.PasswordResetToken)}
}

func (r *memoryResetRepository) Create(_ context.Context, token *repository.PasswordResetToken) error {
	r.nextID++
	token.ID = fmt.Sprintf("reset-%d", r.nextID)
	token.CreatedAt = time.Now()
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *memoryResetRepository) GetByToken(_ context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *token
	return &clone, nil
}

func (r *memoryResetRepository) MarkUsed(_ context.Context, id string) error {
	for _, token := range r.tokens {
		if token.ID == id {
			now := time.Now()
			token.UsedAt = &now
		}
	}
	return nil
}

type testServer struct {
	app   *fiber.App
	users *memoryUserRepository
	codec *auth.TokenCodec
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := newMemoryUserRepository()
	resets := newMemoryResetRepository()
	codec := auth.NewTokenCodec("test-secret", time.Hour, nil)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:          users,
		PasswordResetRepo: resets,
		TokenCodec:        codec,
		BcryptCost:        4,
	})
	userService := service.NewUserService(users, nil, 4)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{
		CORSOrigin: "http://localhost:3000",
		Timeout:    5 * time.Second,
	})
	RegisterRoutes(app, RouteConfig{
		ServiceName: "incubation-api",
		Version:     "test",
		APIPrefix:   "/api/v1",
		Health:      handlers.NewHealthHandler("incubation-api", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:        handlers.NewAuthHandler(authService, codec.TTL()),
		Users:       handlers.NewUsersHandler(userService),
		Gate:        auth.NewGate(codec),
	})

	return &testServer{app: app, users: users, codec: codec}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func (s *testServer) register(t *testing.T, name, email, password string) envelope {
	resp, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return env
}

func (s *testServer) login(t *testing.T, email, password string) (string, envelope) {
	resp, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token, env
}

// seedUser writes an account directly through the admin service path so tests
// can mint non-MEMBER roles without going through /users.
func (s *testServer) seedUser(t *testing.T, name, email, password string, role domain.Role) string {
	t.Helper()
	svc := service.NewUserService(s.users, nil, 4)
	user, err := svc.Create(context.Background(), service.CreateUserInput{
		Name: name, Email: email, Password: password, Role: role,
	})
	require.NoError(t, err)
	return user.ID
}

func TestRegisterStripsPassword(t *testing.T) {
	server := newTestServer(t)
	env := server.register(t, "Alice", "alice@example.com", "secret123")

	require.True(t, env.Success)
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))

	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(data["user"], &user))
	require.Equal(t, "alice@example.com", user["email"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "passwordHash")
	require.Equal(t, "MEMBER", user["role"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "Alice", "alice@example.com", "secret123")

	resp, env := server.do(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": "Alice Again", "email": "alice@example.com", "password": "other456",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)
	require.Equal(t, "Email already registered", env.Error)
}

func TestLoginWrongPassword(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "Alice", "alice@example.com", "secret123")

	resp, env := server.do(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email": "alice@example.com", "password": "wrongpw",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid email or password", env.Error)

	// Unknown email: same status, same error string.
	resp, env = server.do(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email": "nobody@example.com", "password": "anything",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid email or password", env.Error)
}

func TestLoginAndMe(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "Alice", "alice@example.com", "secret123")

	token, _ := server.login(t, "alice@example.com", "secret123")

	resp, env := server.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Equal(t, "alice@example.com", user["email"])
}

func TestLoginSetsAuthCookie(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "Alice", "alice@example.com", "secret123")

	body, err := json.Marshal(fiber.Map{"email": "alice@example.com", "password": "secret123"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var authCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.CookieName {
			authCookie = cookie
		}
	}
	require.NotNil(t, authCookie, "auth cookie not set")
	require.True(t, authCookie.HttpOnly)
	require.Equal(t, "/", authCookie.Path)
	require.InDelta(t, int(time.Hour.Seconds()), authCookie.MaxAge, 1)

	// The cookie alone authenticates /me.
	meReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	meReq.AddCookie(authCookie)
	meResp, err := server.app.Test(meReq, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
}

func TestMeWithoutTokenAndWithGarbledToken(t *testing.T) {
	server := newTestServer(t)

	resp, env := server.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Unauthorized", env.Error)

	resp, env = server.do(t, http.MethodGet, "/api/v1/auth/me", "not.a.token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Unauthorized", env.Error)
}

func TestMeWithStaleSubject(t *testing.T) {
	server := newTestServer(t)
	env := server.register(t, "Alice", "alice@example.com", "secret123")

	var data struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	delete(server.users.users, data.User.ID)

	resp, _ := server.do(t, http.MethodGet, "/api/v1/auth/me", data.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUserRoleEnforcement(t *testing.T) {
	server := newTestServer(t)

	server.seedUser(t, "Admin", "admin@example.com", "admin123", domain.RoleAdmin)
	targetID := server.seedUser(t, "Target", "target@example.com", "target123", domain.RoleMember)
	server.register(t, "Member", "member@example.com", "member123")

	memberToken, _ := server.login(t, "member@example.com", "member123")
	adminToken, _ := server.login(t, "admin@example.com", "admin123")

	resp, env := server.do(t, http.MethodDelete, "/api/v1/users/"+targetID, memberToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "Forbidden: Insufficient permissions", env.Error)

	resp, env = server.do(t, http.MethodDelete, "/api/v1/users/"+targetID, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	resp, env = server.do(t, http.MethodDelete, "/api/v1/users/"+targetID, adminToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.False(t, env.Success)
}

func TestStaffCannotManageUsers(t *testing.T) {
	server := newTestServer(t)
	server.seedUser(t, "Staff", "staff@example.com", "staff123", domain.RoleStaff)
	staffToken, _ := server.login(t, "staff@example.com", "staff123")

	resp, _ := server.do(t, http.MethodGet, "/api/v1/users/", staffToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminListsUsers(t *testing.T) {
	server := newTestServer(t)
	server.seedUser(t, "Admin", "admin@example.com", "admin123", domain.RoleAdmin)
	server.register(t, "Member", "member@example.com", "member123")
	adminToken, _ := server.login(t, "admin@example.com", "admin123")

	resp, env := server.do(t, http.MethodGet, "/api/v1/users/?page=1&limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 2, data.Pagination.Total)
	require.Len(t, data.Data, 2)
}

func TestExpiredTokenOnGuardedRoute(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "Alice", "alice@example.com", "secret123")

	// A codec whose clock sits beyond both ttl windows backdates iat and exp.
	past := time.Now().Add(-2 * time.Hour)
	backdated := auth.NewTokenCodec("test-secret", time.Hour, func() time.Time { return past })
	token, _, err := backdated.Issue(domain.Identity{UserID: "user-1", Role: domain.RoleMember})
	require.NoError(t, err)

	resp, env := server.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Unauthorized", env.Error)
}
