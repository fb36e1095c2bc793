package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestValuesDoNotCollide(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "p")
	ctx = WithLogger(ctx, "l")
	ctx = WithActorID(ctx, 7)

	assert.Equal(t, "p", ctx.Value(PrincipalKey))
	assert.Equal(t, "l", ctx.Value(LoggerKey))
	assert.Equal(t, int64(7), ctx.Value(ActorIDKey))
	assert.Nil(t, ctx.Value(Key("principal_other")))
}

func TestActorID(t *testing.T) {
	assert.Zero(t, GetActorID(context.Background()))
	assert.Equal(t, int64(12), GetActorID(WithActorID(context.Background(), 12)))
}
