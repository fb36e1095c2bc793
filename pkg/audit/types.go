package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platinummonkey/modulink/pkg/contextkeys"
)

// EventType represents the category of audit event
type EventType string

const (
	// Store events
	EventTypeModulePurchase  EventType = "store.module_purchase"
	EventTypeModuleUninstall EventType = "store.module_uninstall"

	// Entitlement events
	EventTypeModuleRolesSet EventType = "entitlement.module_roles_set"
	EventTypeRoleMembersSet EventType = "entitlement.role_members_set"
	EventTypeAccessDenied   EventType = "entitlement.access_denied"

	// Role management events
	EventTypeRoleCreate EventType = "role.create"
	EventTypeRoleUpdate EventType = "role.update"
	EventTypeRoleDelete EventType = "role.delete"

	// Tenant events
	EventTypeTenantBootstrap EventType = "tenant.bootstrap"

	// Integrity events
	EventTypeIntegrityViolation EventType = "integrity.violation"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeModule ResourceType = "module"
	ResourceTypeRole   ResourceType = "role"
	ResourceTypeTenant ResourceType = "tenant"
	ResourceTypeUser   ResourceType = "user"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	TenantID *int64 `json:"tenant_id,omitempty"`
	UserID   *int64 `json:"user_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with the current time and the request
// id carried by ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// ForTenant sets the tenant the event belongs to
func (e *Event) ForTenant(tenantID int64) *Event {
	e.TenantID = &tenantID
	return e
}

// ByUser sets the acting user
func (e *Event) ByUser(userID int64) *Event {
	if userID != 0 {
		e.UserID = &userID
	}
	return e
}

// OnResource sets the changed resource
func (e *Event) OnResource(resourceType ResourceType, resourceID string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithMessage sets the human readable message
func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// With adds a metadata entry
func (e *Event) With(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter narrows a DBLogger search
type SearchFilter struct {
	TenantID  *int64
	EventType EventType
	Since     time.Time
	Limit     int
}
