package entitlement

import (
	"errors"
	"fmt"
)

// ErrIntegrityViolation is returned when the stored graph links rows of
// different tenants. Every *IntegrityError unwraps to it.
var ErrIntegrityViolation = errors.New("entitlement graph is inconsistent")

// ErrInvalidInput wraps rejected role fields and policies
var ErrInvalidInput = errors.New("invalid input")

// ViolationKind names a class of integrity violation
type ViolationKind string

const (
	// ViolationCrossTenantAffiliation is a user affiliated with a role of
	// another tenant
	ViolationCrossTenantAffiliation ViolationKind = "cross_tenant_affiliation"
	// ViolationCrossTenantPertinence is a role granted on another tenant's
	// activation
	ViolationCrossTenantPertinence ViolationKind = "cross_tenant_pertinence"
	// ViolationMissingAdminRole is a tenant without its admin role
	ViolationMissingAdminRole ViolationKind = "missing_admin_role"
)

// ViolationKinds lists every kind, in report order
func ViolationKinds() []ViolationKind {
	return []ViolationKind{
		ViolationCrossTenantAffiliation,
		ViolationCrossTenantPertinence,
		ViolationMissingAdminRole,
	}
}

// Violation identifies the offending rows. Ids that do not apply are zero.
type Violation struct {
	Kind          ViolationKind `json:"kind"`
	TenantID      int64         `json:"tenant_id"`
	OtherTenantID int64         `json:"other_tenant_id,omitempty"`
	UserID        int64         `json:"user_id,omitempty"`
	RoleID        int64         `json:"role_id,omitempty"`
	ActivationID  int64         `json:"activation_id,omitempty"`
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationCrossTenantAffiliation:
		return fmt.Sprintf("user %d of tenant %d is affiliated with role %d of tenant %d",
			v.UserID, v.TenantID, v.RoleID, v.OtherTenantID)
	case ViolationCrossTenantPertinence:
		return fmt.Sprintf("role %d of tenant %d is granted on activation %d of tenant %d",
			v.RoleID, v.TenantID, v.ActivationID, v.OtherTenantID)
	case ViolationMissingAdminRole:
		return fmt.Sprintf("tenant %d has no admin role", v.TenantID)
	default:
		return string(v.Kind)
	}
}

// IntegrityError reports a violation found while serving a request
type IntegrityError struct {
	Violation
	Cause error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrIntegrityViolation, e.Violation)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both ErrIntegrityViolation and the underlying cause
func (e *IntegrityError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrIntegrityViolation}
	}
	return []error{ErrIntegrityViolation, e.Cause}
}
