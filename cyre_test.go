package cyre_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrymomot/cyre"
	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *cyre.Bus {
	t.Helper()
	bus := cyre.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})
	return bus
}

func TestBus_Action_On_Call_FastPath(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	resp := bus.Action(channel.Config{ID: "greet"})
	require.True(t, resp.OK)
	assert.Contains(t, resp.Message, "Fast path")

	var received any
	_, err := bus.On("greet", func(ctx context.Context, payload any) (any, error) {
		received = payload
		return "hello " + payload.(string), nil
	})
	require.NoError(t, err)

	resp = bus.Call(context.Background(), "greet", "world")
	require.True(t, resp.OK)
	assert.Equal(t, "hello world", resp.Payload)
	assert.Equal(t, "world", received)
}

func TestBus_Call_UnknownChannel(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	resp := bus.Call(context.Background(), "missing", nil)
	assert.False(t, resp.OK)
	assert.Equal(t, "not found", resp.Message)
}

func TestBus_Healthcheck_OKWhileRunning(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	assert.NoError(t, bus.Healthcheck(context.Background()))
}

func TestBus_Healthcheck_FailsBeforeInit(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	assert.Error(t, bus.Healthcheck(context.Background()))
}

func TestBus_Call_NoHandlers(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "quiet"})

	resp := bus.Call(context.Background(), "quiet", "x")
	assert.False(t, resp.OK)
}

func TestBus_Throttle_RejectsWithinWindow(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "limited", Protection: channel.Protection{Throttle: 50 * time.Millisecond}})
	bus.On("limited", func(ctx context.Context, payload any) (any, error) { return payload, nil })

	first := bus.Call(context.Background(), "limited", 1)
	require.True(t, first.OK)

	second := bus.Call(context.Background(), "limited", 2)
	assert.False(t, second.OK)
}

func TestBus_Required_RejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "validated", Processing: channel.Processing{Required: true}})
	bus.On("validated", func(ctx context.Context, payload any) (any, error) { return payload, nil })

	resp := bus.Call(context.Background(), "validated", "")
	assert.False(t, resp.OK)
}

func TestBus_GetPrevious_TracksLastDispatchedPayload(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "tracked"})
	bus.On("tracked", func(ctx context.Context, payload any) (any, error) { return payload, nil })

	_, hasPrev := bus.GetPrevious("tracked")
	assert.False(t, hasPrev)

	bus.Call(context.Background(), "tracked", "v1")

	prev, hasPrev := bus.GetPrevious("tracked")
	require.True(t, hasPrev)
	assert.Equal(t, "v1", prev)
}

func TestBus_Lock_BlocksNewRegistrations(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "pre"})
	bus.Lock()

	resp := bus.Action(channel.Config{ID: "post"})
	assert.False(t, resp.OK)

	_, err := bus.On("pre", func(ctx context.Context, payload any) (any, error) { return nil, nil })
	assert.NoError(t, err)
}

func TestBus_Clear_RemovesChannelsKeepsBreathing(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "a"})
	bus.InjectTestStress(0.42)

	bus.Clear()

	_, ok := bus.Get("a")
	assert.False(t, ok)
	assert.InDelta(t, 0.42, bus.GetBreathingState().Stress, 0.001, "clear must not reset breathing state")
}

func TestBus_Branch_PrefixesChannelIDs(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	users := bus.Branch("users")

	resp := users.Action(channel.Config{ID: "created"})
	require.True(t, resp.OK)

	var got any
	users.On("created", func(ctx context.Context, payload any) (any, error) {
		got = payload
		return nil, nil
	})

	resp = users.Call(context.Background(), "created", "alice")
	require.True(t, resp.OK)
	assert.Equal(t, "alice", got)

	_, ok := bus.Get("users/created")
	assert.True(t, ok)
}

func TestBus_IntraLinkChaining_RecordsChainResult(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "first"})
	bus.Action(channel.Config{ID: "second"})

	var secondReceived any
	bus.On("second", func(ctx context.Context, payload any) (any, error) {
		secondReceived = payload
		return "done", nil
	})
	bus.On("first", func(ctx context.Context, payload any) (any, error) {
		return channel.Link{ID: "second", Payload: "chained"}, nil
	})

	resp := bus.Call(context.Background(), "first", nil)
	require.True(t, resp.OK)
	require.NotNil(t, resp.Metadata)
	require.NotNil(t, resp.Metadata.ChainResult)
	assert.True(t, resp.Metadata.ChainResult.OK)
	assert.Equal(t, "chained", secondReceived)
}

func TestBus_Delay_SchedulesDeferredDispatch(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	delay := 30 * time.Millisecond
	bus.Action(channel.Config{ID: "deferred", Timing: channel.Timing{Delay: &delay}})

	fired := make(chan any, 1)
	bus.On("deferred", func(ctx context.Context, payload any) (any, error) {
		fired <- payload
		return nil, nil
	})

	resp := bus.Call(context.Background(), "deferred", "later")
	assert.True(t, resp.OK)
	assert.True(t, resp.Metadata.Scheduled)

	select {
	case payload := <-fired:
		assert.Equal(t, "later", payload)
	case <-time.After(time.Second):
		t.Fatal("deferred handler never fired")
	}
}
