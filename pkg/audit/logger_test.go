package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	events []*Event
	err    error
	closed bool
}

func (r *recordingLogger) Log(_ context.Context, event *Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingLogger) Close() error {
	r.closed = true
	return nil
}

func TestMultiLogger(t *testing.T) {
	ok := &recordingLogger{}
	failing := &recordingLogger{err: errors.New("down")}
	multi := NewMultiLogger(failing, ok)

	err := multi.Log(context.Background(), NewEvent(context.Background(), EventTypeRoleCreate, EventStatusSuccess))
	require.Error(t, err)
	assert.Len(t, ok.events, 1, "later loggers still receive the event")
	assert.Len(t, failing.events, 1)

	require.NoError(t, multi.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)
}

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	logger := NewLogrusLogger(base)
	ctx := context.Background()

	event := NewEvent(ctx, EventTypeAccessDenied, EventStatusDenied).
		ForTenant(3).
		ByUser(9).
		OnResource(ResourceTypeModule, "7").
		WithMessage("access denied")
	require.NoError(t, logger.Log(ctx, event))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "access denied", entry.Message)
	assert.Equal(t, int64(3), entry.Data["tenant_id"])
	assert.Equal(t, "audit", entry.Data["component"])

	require.NoError(t, logger.Log(ctx, NewEvent(ctx, EventTypeRoleCreate, EventStatusSuccess).With("role", "x")))
	entry = hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "x", entry.Data["meta_role"])
}

func TestEventBuilders(t *testing.T) {
	event := NewEvent(context.Background(), EventTypeRoleUpdate, EventStatusSuccess).ByUser(0)
	assert.Nil(t, event.UserID, "zero user id means system actor")

	data, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"role.update"`)
}
