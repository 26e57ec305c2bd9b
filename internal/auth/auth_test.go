package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(testSecret, time.Hour)
	require.NoError(t, err)
	return service
}

func testUser(role models.Role) *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Username: "testuser",
		Role:     role,
	}
}

func TestNewService(t *testing.T) {
	service, err := NewService(testSecret, 24*time.Hour)
	assert.NoError(t, err)
	assert.NotNil(t, service)
	assert.Equal(t, []byte(testSecret), service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	_, err = NewService("", time.Hour)
	assert.Error(t, err)
	_, err = NewService(testSecret, 0)
	assert.Error(t, err)
}

func TestService_HashPassword(t *testing.T) {
	service := newTestService(t)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestService_CheckPassword(t *testing.T) {
	service := newTestService(t)

	password := "testpassword123"
	hash, _ := service.HashPassword(password)

	// Test correct password
	assert.True(t, service.CheckPassword(password, hash))

	// Test incorrect password
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := newTestService(t)
	user := testUser(models.RoleEVMStaff)

	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	// Test valid token
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Role, claims.Role)
	assert.Equal(t, models.Actor{UserID: user.ID.Hex(), Role: models.RoleEVMStaff}, claims.Actor())

	// Test invalid token
	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	// Test token with Bearer prefix
	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
}

func TestService_ValidateTokenRejects(t *testing.T) {
	service := newTestService(t)
	other, err := NewService("another-secret", time.Hour)
	require.NoError(t, err)

	foreign, err := other.GenerateToken(testUser(models.RoleSCStaff))
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "u1",
		"username": "ghost",
		"role":     "ADMIN",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "u1",
		"username": "ghost",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"signed with another secret", foreign},
		{"role outside the warranty roles", unknownRole},
		{"missing role", noRole},
		{"garbage", "a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			assert.Equal(t, ErrInvalidToken, err)
		})
	}
}

func TestService_TokenExpiration(t *testing.T) {
	service := newTestService(t)
	issued := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(testUser(models.RoleSCTechnician))
	require.NoError(t, err)

	// Token should be valid immediately
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour).Unix(), claims.Exp)

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := newTestService(t)

	// Test valid header
	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, header)
	}
}

func TestService_ValidatePassword(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidatePassword("validpassword123"))

	err := service.ValidatePassword("short")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestService_ValidateEmail(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidateEmail("test@example.com"))

	for _, email := range []string{"testexample.com", "test@", "test"} {
		err := service.ValidateEmail(email)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid email format")
	}
}

func TestService_ValidateUsername(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidateUsername("testuser"))

	err := service.ValidateUsername("ab")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 3 characters")

	err = service.ValidateUsername(strings.Repeat("a", 51))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "less than 50 characters")
}
