package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopRunsControllersInOrder(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	var iterations []uint64
	loop.AddController(
		ControlFunc(func(cc ControlContext) error {
			order = append(order, "first")
			iterations = append(iterations, cc.Iteration())
			return nil
		}),
		ControlFunc(func(cc ControlContext) error {
			order = append(order, "second")
			if cc.Iteration() == 3 {
				cancel()
			}
			return nil
		}),
	)

	err := loop.Run(ctx)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, []string{"first", "second", "first", "second", "first", "second"}, order)
	require.Equal(t, []uint64{1, 2, 3}, iterations)
}

func TestLoopStopsOnRunnableFailure(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	failure := errors.New("reader failed")
	loop.AddRunnable(NamedRun("reader", RunFunc(func(context.Context) error {
		return failure
	})))

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		require.True(t, errors.Is(err, failure))
		require.Contains(t, err.Error(), "reader")
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopTriggerNext(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ran := make(chan struct{}, 1)
	loop.AddController(ControlFunc(func(cc ControlContext) error {
		ran <- struct{}{}
		return nil
	}))

	go loop.Run(ctx)
	loop.TriggerNext()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("TriggerNext did not run an iteration")
	}
}
