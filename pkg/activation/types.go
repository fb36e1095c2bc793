package activation

import (
	"errors"
	"time"
)

var (
	// ErrModuleNotActivated is returned when a tenant has not enabled a module
	ErrModuleNotActivated = errors.New("module not activated")

	// ErrAlreadyActivated marks a repeated purchase. Purchase reports it
	// through its created flag instead of returning it.
	ErrAlreadyActivated = errors.New("module already activated")

	// ErrModuleLocked is returned when uninstalling a core module
	ErrModuleLocked = errors.New("module cannot be uninstalled")
)

// Activation records that a tenant has enabled a catalog module
type Activation struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	ModuleID    int64     `json:"module_id"`
	ActivatedAt time.Time `json:"activated_at"`
}
