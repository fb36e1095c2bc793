package entitlement

import "fmt"

// Policy decides what SetModuleRoles does with an empty role set
type Policy int

const (
	// PolicyFallbackToAdmin grants the module to the tenant admin role only,
	// so the module is never left without someone able to re-grant it.
	// Used by the company-wide store flow.
	PolicyFallbackToAdmin Policy = iota + 1
	// PolicyRevokeAll removes every grant. Used by per-feature flows where a
	// higher-privileged actor re-grants access.
	PolicyRevokeAll
)

// ParsePolicy accepts "fallback-admin" and "revoke-all"
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "fallback-admin":
		return PolicyFallbackToAdmin, nil
	case "revoke-all":
		return PolicyRevokeAll, nil
	default:
		return 0, fmt.Errorf("unknown empty role set policy %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyFallbackToAdmin:
		return "fallback-admin"
	case PolicyRevokeAll:
		return "revoke-all"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	return p == PolicyFallbackToAdmin || p == PolicyRevokeAll
}
