package handlers

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/auth"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/middleware"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	logger         log.FieldLogger
	now            func() time.Time
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ChangePasswordRequest is the body of POST /api/auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(r, &loginReq); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		writeStatus(w, http.StatusBadRequest, string(models.KindInvalidInput), "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if models.KindOf(err) != models.KindNotFound {
			writeError(w, r, h.logger, err)
			return
		}
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrInvalidCredentials.Error())
		return
	}

	if !user.IsActive {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrUserInactive.Error())
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrInvalidCredentials.Error())
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// A failed last-login update does not fail the login.
	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex(), h.now()); err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	h.logger.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("User logged in")
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(r, &registerReq); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	registerReq.Username = strings.TrimSpace(registerReq.Username)
	registerReq.Email = strings.TrimSpace(registerReq.Email)

	for _, validate := range []func() error{
		func() error { return h.authService.ValidateUsername(registerReq.Username) },
		func() error { return h.authService.ValidateEmail(registerReq.Email) },
		func() error { return h.authService.ValidatePassword(registerReq.Password) },
	} {
		if err := validate(); err != nil {
			writeStatus(w, http.StatusBadRequest, string(models.KindInvalidInput), err.Error())
			return
		}
	}

	if !models.IsValidRole(registerReq.Role) {
		writeStatus(w, http.StatusBadRequest, string(models.KindInvalidInput), "Invalid role")
		return
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), registerReq.Username); err == nil {
		writeStatus(w, http.StatusConflict, string(models.KindBusinessRuleViolation), "Username already exists")
		return
	}
	if _, err := h.userCollection.FindUserByEmail(r.Context(), registerReq.Email); err == nil {
		writeStatus(w, http.StatusConflict, string(models.KindBusinessRuleViolation), "Email already exists")
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
		FullName:     registerReq.FullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("User registered")
	writeJSON(w, http.StatusCreated, models.LoginResponse{Token: token, User: user})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "User context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "User context not found")
		return
	}

	var passwordReq ChangePasswordRequest
	if err := decodeJSON(r, &passwordReq); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		writeStatus(w, http.StatusBadRequest, string(models.KindInvalidInput), "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		writeStatus(w, http.StatusBadRequest, string(models.KindInvalidInput), err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "Current password is incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.userCollection.UpdatePassword(r.Context(), claims.UserID, newPasswordHash, h.now()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.WithField("user_id", claims.UserID).Info("Password changed")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
