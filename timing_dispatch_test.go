package cyre_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrymomot/cyre"
	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/orchestration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Debounce_CollapsesBurstIntoOneDispatch(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	bus.Action(channel.Config{ID: "search", Protection: channel.Protection{Debounce: 30 * time.Millisecond}})

	var calls atomic.Int32
	var last atomic.Value
	bus.On("search", func(ctx context.Context, payload any) (any, error) {
		calls.Add(1)
		last.Store(payload)
		return payload, nil
	})

	resp := bus.Call(context.Background(), "search", "a")
	assert.True(t, resp.OK)
	resp = bus.Call(context.Background(), "search", "ab")
	assert.True(t, resp.OK)
	resp = bus.Call(context.Background(), "search", "abc")
	assert.True(t, resp.OK)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "abc", last.Load())
}

func TestBus_Debounce_MaxWaitForcesDispatchDuringBurst(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	bus.Action(channel.Config{ID: "typing", Protection: channel.Protection{
		Debounce: 40 * time.Millisecond,
		MaxWait:  60 * time.Millisecond,
	}})

	var calls atomic.Int32
	bus.On("typing", func(ctx context.Context, payload any) (any, error) {
		calls.Add(1)
		return payload, nil
	})

	deadline := time.Now().Add(90 * time.Millisecond)
	for time.Now().Before(deadline) {
		bus.Call(context.Background(), "typing", "x")
		time.Sleep(10 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, calls.Load(), int32(1), "maxWait should have forced at least one dispatch before the burst ended")
}

func TestBus_Dispatch_SequentialCollectsAll(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "pipeline-step", Dispatch: channel.Dispatch{
		Strategy:       channel.StrategySequential,
		CollectResults: channel.CollectAll,
	}})

	var order []int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		i := i
		bus.On("pipeline-step", func(ctx context.Context, payload any) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
	}

	resp := bus.Call(context.Background(), "pipeline-step", nil)
	require.True(t, resp.OK)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_Dispatch_SequentialCollectLastReturnsFinalResult(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "chain", Dispatch: channel.Dispatch{
		Strategy:       channel.StrategySequential,
		CollectResults: channel.CollectLast,
	}})

	bus.On("chain", func(ctx context.Context, payload any) (any, error) { return "first", nil })
	bus.On("chain", func(ctx context.Context, payload any) (any, error) { return "second", nil })

	resp := bus.Call(context.Background(), "chain", nil)
	require.True(t, resp.OK)
	assert.Equal(t, "second", resp.Payload)
}

func TestBus_Dispatch_RaceReturnsFastestHandler(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "race", Dispatch: channel.Dispatch{Strategy: channel.StrategyRace}})

	bus.On("race", func(ctx context.Context, payload any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "slow", nil
	})
	bus.On("race", func(ctx context.Context, payload any) (any, error) {
		return "fast", nil
	})

	resp := bus.Call(context.Background(), "race", nil)
	require.True(t, resp.OK)
	assert.Equal(t, "fast", resp.Payload)
}

func TestBus_Dispatch_RaceIgnoresFastFailureInFavorOfSlowerSuccess(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "race-any", Dispatch: channel.Dispatch{Strategy: channel.StrategyRace}})

	bus.On("race-any", func(ctx context.Context, payload any) (any, error) {
		return nil, errors.New("fast failure")
	})
	bus.On("race-any", func(ctx context.Context, payload any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "slow success", nil
	})

	resp := bus.Call(context.Background(), "race-any", nil)
	require.True(t, resp.OK)
	assert.Equal(t, "slow success", resp.Payload)
}

func TestBus_Dispatch_WaterfallThreadsPayloadThroughHandlers(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	bus.Action(channel.Config{ID: "waterfall", Dispatch: channel.Dispatch{Strategy: channel.StrategyWaterfall}})

	bus.On("waterfall", func(ctx context.Context, payload any) (any, error) {
		return payload.(int) + 1, nil
	})
	bus.On("waterfall", func(ctx context.Context, payload any) (any, error) {
		return payload.(int) * 10, nil
	})

	resp := bus.Call(context.Background(), "waterfall", 1)
	require.True(t, resp.OK)
	assert.Equal(t, 20, resp.Payload)
}

func TestBus_Interval_FiresRepeatedlyWithoutDelay(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	interval := 20 * time.Millisecond
	repeat := 3
	bus.Action(channel.Config{ID: "heartbeat", Timing: channel.Timing{Interval: &interval, Repeat: &repeat}})

	var fires atomic.Int32
	bus.On("heartbeat", func(ctx context.Context, payload any) (any, error) {
		fires.Add(1)
		return nil, nil
	})

	resp := bus.Call(context.Background(), "heartbeat", "tick")
	require.True(t, resp.OK)
	require.NotNil(t, resp.Metadata)
	assert.True(t, resp.Metadata.Scheduled)

	require.Eventually(t, func() bool { return fires.Load() == int32(repeat) }, 2*time.Second, 10*time.Millisecond)
}

func TestBus_Recuperation_RejectsNonCriticalCallsUnderHighStress(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	bus.Action(channel.Config{ID: "background-job", Priority: channel.PriorityBackground})
	bus.On("background-job", func(ctx context.Context, payload any) (any, error) { return nil, nil })

	bus.InjectTestStress(0.95)
	defer bus.ClearTestStress()

	require.Eventually(t, func() bool {
		return bus.GetBreathingState().IsRecuperating
	}, time.Second, 5*time.Millisecond, "breathing monitor should enter recuperation under injected stress")

	resp := bus.Call(context.Background(), "background-job", nil)
	assert.False(t, resp.OK)
}

func TestBus_Orchestration_RunsActionStepOnExternalTrigger(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	require.NoError(t, bus.Init(context.Background()))

	bus.Action(channel.Config{ID: "notify"})
	var notified atomic.Bool
	bus.On("notify", func(ctx context.Context, payload any) (any, error) {
		notified.Store(true)
		return nil, nil
	})

	err := bus.Orchestration().Keep(orchestration.Config{
		ID:       "notify-flow",
		Triggers: []orchestration.Trigger{{Kind: orchestration.TriggerExternal}},
		Steps: []orchestration.Step{
			{Name: "notify", Kind: orchestration.StepAction, Targets: []string{"notify"}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, bus.Orchestration().Call(context.Background(), "notify-flow", nil))
	assert.True(t, notified.Load())
}
