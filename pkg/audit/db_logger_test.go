package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/contextkeys"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestDBLogger_LogAndSearch(t *testing.T) {
	db := testdb.New(t)
	logger := NewDBLogger(db)
	ctx := contextkeys.WithRequestID(context.Background(), "req-42")

	purchase := NewEvent(ctx, EventTypeModulePurchase, EventStatusSuccess).
		ForTenant(1).
		ByUser(10).
		OnResource(ResourceTypeModule, "7").
		WithMessage("module purchased").
		With("created", true)
	require.NoError(t, logger.Log(ctx, purchase))
	assert.NotZero(t, purchase.ID)

	other := NewEvent(ctx, EventTypeRoleCreate, EventStatusSuccess).ForTenant(2)
	require.NoError(t, logger.Log(ctx, other))

	tenant := int64(1)
	events, err := logger.Search(ctx, SearchFilter{TenantID: &tenant})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, EventTypeModulePurchase, got.EventType)
	assert.Equal(t, EventStatusSuccess, got.Status)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(10), *got.UserID)
	assert.Equal(t, ResourceTypeModule, got.ResourceType)
	assert.Equal(t, "7", got.ResourceID)
	assert.Equal(t, "req-42", got.RequestID)
	assert.Equal(t, true, got.Metadata["created"])

	events, err = logger.Search(ctx, SearchFilter{EventType: EventTypeRoleCreate})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UserID)

	events, err = logger.Search(ctx, SearchFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDBLogger_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnError(errors.New("disk full"))

	err = NewDBLogger(db).Log(context.Background(), NewEvent(context.Background(), EventTypeRoleDelete, EventStatusSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert audit log")
	assert.NoError(t, mock.ExpectationsWereMet())
}
