package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/ev-warranty/internal/auth"
	"github.com/ukydev/ev-warranty/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey      contextKey = "user"
	RequestIDContextKey contextKey = "request_id"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate validates JWT tokens and adds user context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for certain endpoints
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		token, err := m.authService.ExtractTokenFromHeader(authHeader)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}
		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through when the caller holds one of roles.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User context not found")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, string(models.KindForbidden), "Insufficient permissions")
		})
	}
}

// RequirePermission middleware checks if the user has the required permission
func (m *AuthMiddleware) RequirePermission(action models.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User context not found")
				return
			}

			if !models.HasPermission(claims.Role, action) {
				writeError(w, http.StatusForbidden, string(models.KindForbidden), "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// ActorFromContext returns the lifecycle actor of the authenticated caller.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	claims, ok := GetUserFromContext(ctx)
	if !ok {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// shouldSkipAuth determines if authentication should be skipped for a given path
func shouldSkipAuth(path string) bool {
	skipPaths := []string{
		"/api/auth/login",
		"/health",
	}

	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}

// RateLimitMiddleware provides basic rate limiting
type RateLimitMiddleware struct {
	requests  map[string][]int64 // IP -> timestamps
	mu        sync.RWMutex       // Mutex for thread-safe access
	now       func() time.Time
	lastSweep int64
	trusted   map[string]bool
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Forwarding
// headers are honoured only on requests arriving from one of trustedProxies.
func NewRateLimitMiddleware(trustedProxies ...string) *RateLimitMiddleware {
	trusted := make(map[string]bool, len(trustedProxies))
	for _, ip := range trustedProxies {
		trusted[ip] = true
	}
	return &RateLimitMiddleware{
		requests: make(map[string][]int64),
		now:      time.Now,
		trusted:  trusted,
	}
}

// RateLimit applies rate limiting based on IP address
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := m.clientIP(r)

			now := m.now().Unix()
			windowStart := now - int64(windowSeconds)

			m.mu.Lock()

			if now-m.lastSweep >= int64(windowSeconds) {
				for ip := range m.requests {
					m.prune(ip, windowStart)
				}
				m.lastSweep = now
			} else {
				m.prune(clientIP, windowStart)
			}

			if len(m.requests[clientIP]) >= maxRequests {
				m.mu.Unlock()
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}

			m.requests[clientIP] = append(m.requests[clientIP], now)
			m.mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

// prune drops the timestamps of ip at or before windowStart and forgets ip
// once none remain. Callers hold m.mu.
func (m *RateLimitMiddleware) prune(ip string, windowStart int64) {
	timestamps, exists := m.requests[ip]
	if !exists {
		return
	}
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts > windowStart {
			valid = append(valid, ts)
		}
	}
	if len(valid) == 0 {
		delete(m.requests, ip)
		return
	}
	m.requests[ip] = valid
}

// clientIP is the peer address, or the forwarded client address when the
// peer is a trusted proxy.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	ip := remoteIP(r)
	if !m.trusted[ip] {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	return ip
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
