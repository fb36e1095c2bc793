package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// DBLogger implements audit logging to the audit_logs table
type DBLogger struct {
	db storage.DBTX
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by the storage migrations.
func NewDBLogger(db storage.DBTX) *DBLogger {
	return &DBLogger{db: db}
}

// Log inserts an audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			tenant_id, user_id,
			resource_type, resource_id,
			request_id, message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.TenantID, event.UserID,
		string(event.ResourceType), event.ResourceID,
		event.RequestID, event.Message, metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search returns events matching filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.TenantID != nil {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argPos))
		args = append(args, *filter.TenantID)
		argPos++
	}
	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argPos))
		args = append(args, string(filter.EventType))
		argPos++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argPos))
		args = append(args, filter.Since.UTC())
		argPos++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, event_type, status, tenant_id, user_id,
		       resource_type, resource_id, request_id, message, metadata
		FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event                                           Event
			eventType, status                               string
			tenantID, userID                                sql.NullInt64
			resourceType, resourceID, requestID, message, md sql.NullString
			timestamp                                       time.Time
		)
		if err := rows.Scan(&event.ID, &timestamp, &eventType, &status, &tenantID, &userID,
			&resourceType, &resourceID, &requestID, &message, &md); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		event.Timestamp = timestamp
		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		if tenantID.Valid {
			event.TenantID = &tenantID.Int64
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		event.ResourceType = ResourceType(resourceType.String)
		event.ResourceID = resourceID.String
		event.RequestID = requestID.String
		event.Message = message.String
		if md.Valid && md.String != "" {
			if err := json.Unmarshal([]byte(md.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Close is a no-op; the connection is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
