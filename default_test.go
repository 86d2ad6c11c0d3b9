package cyre_test

import (
	"context"
	"testing"

	"github.com/dmitrymomot/cyre"
	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PackageLevelWrappersDelegateToOneLazyBus(t *testing.T) {
	resp := cyre.Action(channel.Config{ID: "default-greet"})
	require.True(t, resp.OK)

	_, err := cyre.On("default-greet", func(ctx context.Context, payload any) (any, error) {
		return "hi " + payload.(string), nil
	})
	require.NoError(t, err)

	call := cyre.Call(context.Background(), "default-greet", "there")
	require.True(t, call.OK)
	assert.Equal(t, "hi there", call.Payload)

	_, ok := cyre.Get("default-greet")
	assert.True(t, ok)

	assert.True(t, cyre.Default() == cyre.Default())

	assert.True(t, cyre.Forget("default-greet"))
}
