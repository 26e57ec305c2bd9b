package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"sc staff", RoleSCStaff, true},
		{"sc technician", RoleSCTechnician, true},
		{"evm staff", RoleEVMStaff, true},
		{"legacy admin", "admin", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestHasPermission(t *testing.T) {
	staff, tech, evm := RoleSCStaff, RoleSCTechnician, RoleEVMStaff

	tests := []struct {
		name     string
		role     Role
		action   Action
		expected bool
	}{
		// Service center staff drive the claim up to submission
		{"staff can create claim", staff, ActionCreateClaim, true},
		{"staff can submit", staff, ActionSubmitClaim, true},
		{"staff can cancel", staff, ActionCancelClaim, true},
		{"staff cannot review", staff, ActionStartReview, false},
		{"staff cannot approve", staff, ActionApproveItem, false},
		{"staff cannot manage policies", staff, ActionManagePolicies, false},

		// Technicians create claims and add items only
		{"technician can create claim", tech, ActionCreateClaim, true},
		{"technician can add item", tech, ActionAddClaimItem, true},
		{"technician cannot submit", tech, ActionSubmitClaim, false},
		{"technician cannot remove item", tech, ActionRemoveClaimItem, false},

		// Manufacturer staff review and own the catalog
		{"evm can start review", evm, ActionStartReview, true},
		{"evm can complete", evm, ActionCompleteClaim, true},
		{"evm can manage categories", evm, ActionManageCategories, true},
		{"evm cannot create claim", evm, ActionCreateClaim, false},
		{"evm cannot submit", evm, ActionSubmitClaim, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HasPermission(tt.role, tt.action)
			if result != tt.expected {
				t.Errorf("HasPermission(%s, %s) = %v, want %v",
					tt.role, tt.action, result, tt.expected)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(Actor{UserID: "u1", Role: RoleEVMStaff}, ActionCompleteClaim))

	err := Authorize(Actor{UserID: "u2", Role: RoleSCTechnician}, ActionCompleteClaim)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, KindForbidden, KindOf(err))

	err = Authorize(Actor{UserID: "u3", Role: "unknown"}, ActionViewClaims)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestClaims_Actor(t *testing.T) {
	c := &Claims{UserID: "abc", Username: "reviewer", Role: RoleEVMStaff}
	assert.Equal(t, Actor{UserID: "abc", Role: RoleEVMStaff}, c.Actor())
}
