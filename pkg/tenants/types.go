package tenants

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTenantNotFound is returned when a tenant id does not exist
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrUserNotFound is returned when a user is absent or belongs to
	// another tenant
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateTaxID is returned when another tenant has the same tax id
	ErrDuplicateTaxID = errors.New("tax id already registered")

	// ErrDuplicateEmail is returned when another user has the same email
	ErrDuplicateEmail = errors.New("email already registered")
)

// Tenant is a subscribing company
type Tenant struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	TaxID      string    `json:"tax_id"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Province   string    `json:"province,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	LogoKey    string    `json:"logo_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User belongs to exactly one tenant
type User struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// UpdateTenantRequest carries the fields to change. Nil fields are kept.
type UpdateTenantRequest struct {
	Name       *string `json:"name,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Province   *string `json:"province,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// Service defines the tenant directory
type Service interface {
	// Tenants
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, id int64, updates *UpdateTenantRequest) error
	SetLogoKey(ctx context.Context, id int64, key string) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, tenantID int64) ([]*User, error)
	RequireUsers(ctx context.Context, tenantID int64, userIDs []int64) error
}
