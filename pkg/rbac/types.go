package rbac

import (
	"errors"
	"time"
)

var (
	// ErrRoleNotFound is returned when a role id is absent or owned by
	// another tenant. The two cases are deliberately indistinguishable.
	ErrRoleNotFound = errors.New("role not found")

	// ErrSystemRole is returned when deleting a system role
	ErrSystemRole = errors.New("system roles cannot be deleted")

	// ErrAdminRoleMissing is returned when a tenant has no admin role
	ErrAdminRoleMissing = errors.New("tenant has no admin role")
)

// Kind distinguishes system roles from tenant-defined ones
type Kind string

const (
	KindAdmin    Kind = "admin"
	KindNewcomer Kind = "newcomer"
	KindMember   Kind = "member"
	KindCustom   Kind = "custom"
)

// IsSystem reports whether roles of this kind are created by bootstrap
func (k Kind) IsSystem() bool {
	return k == KindAdmin || k == KindNewcomer || k == KindMember
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k.IsSystem() || k == KindCustom
}

// Role is a tenant-scoped permission bucket
type Role struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	Kind        Kind      `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSystem reports whether the role was created by tenant bootstrap
func (r *Role) IsSystem() bool {
	return r.Kind.IsSystem()
}

// SystemRole describes a role every tenant is bootstrapped with
type SystemRole struct {
	Kind        Kind
	Name        string
	Color       string
	Description string
}

// SystemRoles are created for every tenant, admin first
var SystemRoles = []SystemRole{
	{Kind: KindAdmin, Name: "Responsabile", Color: "#000000", Description: "Company owner with access to every module"},
	{Kind: KindNewcomer, Name: "Utente Nuovo", Color: "#2563eb", Description: "Newly registered user"},
	{Kind: KindMember, Name: "Utente", Color: "#6b7280", Description: "Regular user"},
}

// IDs returns the ids of roles in order
func IDs(roles []*Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}
