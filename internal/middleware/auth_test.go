package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/ev-warranty/internal/auth"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAuth(t *testing.T) (*auth.Service, *AuthMiddleware) {
	t.Helper()
	authService, err := auth.NewService("middleware-secret", time.Hour)
	require.NoError(t, err)
	return authService, NewAuthMiddleware(authService)
}

func tokenFor(t *testing.T, authService *auth.Service, role models.Role) string {
	t.Helper()
	token, err := authService.GenerateToken(&models.User{
		ID:       primitive.NewObjectID(),
		Username: "user-" + string(role),
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService, middleware := newAuth(t)

	t.Run("valid token", func(t *testing.T) {
		token := tokenFor(t, authService, models.RoleSCStaff)
		req := httptest.NewRequest("GET", "/api/claims", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			actor, ok := ActorFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, models.RoleSCStaff, actor.Role)
			assert.NotEmpty(t, actor.UserID)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	rejected := []struct {
		name   string
		header string
	}{
		{"missing authorization header", ""},
		{"invalid token", "Bearer invalid-token"},
		{"wrong scheme", "Token abc"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/claims", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.False(t, handlerCalled)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHORIZED", body["code"])
		})
	}

	for _, path := range []string{"/api/auth/login", "/health"} {
		t.Run("skip auth "+path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.True(t, handlerCalled)
		})
	}

	for _, path := range []string{"/api/auth/profile", "/api/auth/register"} {
		t.Run(path+" is not public", func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()
			middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	authService, middleware := newAuth(t)

	tests := []struct {
		name       string
		role       models.Role
		wantStatus int
	}{
		{"evm staff on review endpoint", models.RoleEVMStaff, http.StatusOK},
		{"service center staff on review endpoint", models.RoleSCStaff, http.StatusForbidden},
		{"technician on review endpoint", models.RoleSCTechnician, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/claims/x/review", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, tt.role))
			w := httptest.NewRecorder()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			middleware.Authenticate(middleware.RequireRole(models.RoleEVMStaff)(handler)).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("any of several roles", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/parts", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, models.RoleSCStaff))
		w := httptest.NewRecorder()

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		middleware.Authenticate(middleware.RequireRole(models.RoleSCStaff, models.RoleEVMStaff)(handler)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no user context", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/parts", nil)
		w := httptest.NewRecorder()
		middleware.RequireRole(models.RoleEVMStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	authService, middleware := newAuth(t)

	tests := []struct {
		name       string
		role       models.Role
		action     models.Action
		wantStatus int
	}{
		{"staff deletes claim", models.RoleSCStaff, models.ActionDeleteClaim, http.StatusOK},
		{"technician deletes claim", models.RoleSCTechnician, models.ActionDeleteClaim, http.StatusForbidden},
		{"evm manages policies", models.RoleEVMStaff, models.ActionManagePolicies, http.StatusOK},
		{"staff manages policies", models.RoleSCStaff, models.ActionManagePolicies, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/x", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, tt.role))
			w := httptest.NewRecorder()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			middleware.Authenticate(middleware.RequirePermission(tt.action)(handler)).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rateLimiter := NewRateLimitMiddleware()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rateLimiter.now = func() time.Time { return now }

	handler := rateLimiter.RateLimit(2, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	send := func(ip string) int {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1"), "window has moved on")
}

func (m *RateLimitMiddleware) clients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func TestRateLimitMiddleware_IgnoresForwardedHeaders(t *testing.T) {
	rateLimiter := NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(2, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.50:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rateLimiter.clients())
}

func TestRateLimitMiddleware_ForgetsIdleClients(t *testing.T) {
	rateLimiter := NewRateLimitMiddleware()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rateLimiter.now = func() time.Time { return now }
	handler := rateLimiter.RateLimit(5, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	send := func(ip string) {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	for i := 0; i < 50; i++ {
		send(fmt.Sprintf("10.1.0.%d", i))
	}
	assert.Equal(t, 50, rateLimiter.clients())

	now = now.Add(2 * time.Minute)
	send("10.2.0.1")
	assert.Equal(t, 1, rateLimiter.clients())
}

func TestClientIP(t *testing.T) {
	rateLimiter := NewRateLimitMiddleware("10.0.0.1")

	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"forwarded for via trusted proxy", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip via trusted proxy", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"trusted proxy without headers", nil, "10.0.0.1:80", "10.0.0.1"},
		{"forwarded for from untrusted peer", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.10:5555", "192.0.2.10"},
		{"real ip from untrusted peer", map[string]string{"X-Real-IP": "198.51.100.2"}, "192.0.2.10:5555", "192.0.2.10"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, rateLimiter.clientIP(req))
		})
	}
}
