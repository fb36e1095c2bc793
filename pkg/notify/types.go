package notify

import (
	"context"
	"time"
)

// EventType represents the type of notification
type EventType string

const (
	EventModulePurchased    EventType = "module.purchased"
	EventModuleUninstalled  EventType = "module.uninstalled"
	EventModuleRolesChanged EventType = "module.roles_changed"
	EventRoleMembersChanged EventType = "role.members_changed"
	EventRoleDeleted        EventType = "role.deleted"
)

// Event is a change to a tenant's entitlement graph
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	TenantID  int64                  `json:"tenant_id"`
	RequestID string                 `json:"request_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Notifier accepts events without ever failing the caller
type Notifier interface {
	Notify(ctx context.Context, event *Event)
}

// Nop discards every event
type Nop struct{}

// Notify does nothing
func (Nop) Notify(context.Context, *Event) {}

// Target is a webhook endpoint
type Target struct {
	URL    string      `json:"url"`
	Secret string      `json:"-"`
	Events []EventType `json:"events,omitempty"` // empty means every event
}

// Wants reports whether the target subscribed to t
func (t Target) Wants(eventType EventType) bool {
	if len(t.Events) == 0 {
		return true
	}
	for _, e := range t.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
