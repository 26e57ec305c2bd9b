package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleSCStaff      Role = "SC_STAFF"
	RoleSCTechnician Role = "SC_TECHNICIAN"
	RoleEVMStaff     Role = "EVM_STAFF"
)

// Action names an operation gated by role.
type Action string

const (
	ActionCreateClaim      Action = "create_claim"
	ActionAddClaimItem     Action = "add_claim_item"
	ActionRemoveClaimItem  Action = "remove_claim_item"
	ActionSubmitClaim      Action = "submit_claim"
	ActionCancelClaim      Action = "cancel_claim"
	ActionDeleteClaim      Action = "delete_claim"
	ActionStartReview      Action = "start_review"
	ActionRequestInfo      Action = "request_info"
	ActionApproveItem      Action = "approve_item"
	ActionRejectItem       Action = "reject_item"
	ActionCompleteClaim    Action = "complete_claim"
	ActionViewClaims       Action = "view_claims"
	ActionManageCategories Action = "manage_categories"
	ActionManagePolicies   Action = "manage_policies"
	ActionManageParts      Action = "manage_parts"
)

var permissions = map[Role]map[Action]bool{
	RoleSCStaff: {
		ActionCreateClaim:     true,
		ActionAddClaimItem:    true,
		ActionRemoveClaimItem: true,
		ActionSubmitClaim:     true,
		ActionCancelClaim:     true,
		ActionDeleteClaim:     true,
		ActionViewClaims:      true,
		ActionManageParts:     true,
	},
	RoleSCTechnician: {
		ActionCreateClaim:  true,
		ActionAddClaimItem: true,
		ActionViewClaims:   true,
	},
	RoleEVMStaff: {
		ActionStartReview:      true,
		ActionRequestInfo:      true,
		ActionApproveItem:      true,
		ActionRejectItem:       true,
		ActionCompleteClaim:    true,
		ActionViewClaims:       true,
		ActionManageCategories: true,
		ActionManagePolicies:   true,
		ActionManageParts:      true,
	},
}

// User represents a user in the system
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	FullName     string             `bson:"full_name" json:"full_name"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// Actor returns the acting identity carried by the token.
func (c *Claims) Actor() Actor {
	return Actor{UserID: c.UserID, Role: c.Role}
}

// Actor is the caller of a lifecycle operation.
type Actor struct {
	UserID string
	Role   Role
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleSCStaff, RoleSCTechnician, RoleEVMStaff:
		return true
	default:
		return false
	}
}

// HasPermission reports whether role may perform action.
func HasPermission(role Role, action Action) bool {
	return permissions[role][action]
}

// Authorize returns a Forbidden error unless the actor's role allows action.
func Authorize(actor Actor, action Action) error {
	if !HasPermission(actor.Role, action) {
		return forbidden(actor.Role, action)
	}
	return nil
}
