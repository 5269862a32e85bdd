package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobs-service/internal/logging"
	"jobmate/jobs-service/internal/scheduler"
)

func TestRegister_Validation(t *testing.T) {
	r := scheduler.New(logging.Nop())
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name string
		task scheduler.Task
	}{
		{"missing name", scheduler.Task{Schedule: "@hourly", Handler: noop}},
		{"missing handler", scheduler.Task{Name: "x", Schedule: "@hourly"}},
		{"bad schedule", scheduler.Task{Name: "x", Schedule: "every tuesday", Handler: noop}},
		{"bad timezone", scheduler.Task{Name: "x", Schedule: "@hourly", Timezone: "Mars/Olympus", Handler: noop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.task))
		})
	}

	require.NoError(t, r.Register(scheduler.Task{Name: "ok", Schedule: "0 * * * *", Handler: noop}))
	assert.Error(t, r.Register(scheduler.Task{Name: "ok", Schedule: "0 * * * *", Handler: noop}))
}

func TestRunNow_IsolatesFailures(t *testing.T) {
	r := scheduler.New(logging.Nop())
	var calls atomic.Int32
	boom := errors.New("boom")

	require.NoError(t, r.Register(scheduler.Task{
		Name:     "flaky",
		Schedule: "@daily",
		Handler: func(context.Context) error {
			switch calls.Add(1) {
			case 1:
				return boom
			case 2:
				panic("kaput")
			}
			return nil
		},
	}))

	ctx := context.Background()
	assert.ErrorIs(t, r.RunNow(ctx, "flaky"), boom)
	assert.ErrorContains(t, r.RunNow(ctx, "flaky"), "panicked")
	assert.NoError(t, r.RunNow(ctx, "flaky"))

	st := r.Statuses()
	require.Len(t, st, 1)
	assert.Equal(t, 3, st[0].Runs)
	assert.Empty(t, st[0].LastError)
	assert.Equal(t, "UTC", st[0].Timezone)
	assert.NotNil(t, st[0].LastRun)
}

func TestRunNow_UnknownTask(t *testing.T) {
	r := scheduler.New(logging.Nop())
	assert.ErrorIs(t, r.RunNow(context.Background(), "nope"), scheduler.ErrUnknownTask)
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	r := scheduler.New(logging.Nop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, r.Register(scheduler.Task{
		Name:     "slow",
		Schedule: "@hourly",
		Handler: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	done := make(chan error, 1)
	go func() { done <- r.RunNow(context.Background(), "slow") }()
	<-started

	assert.ErrorIs(t, r.RunNow(context.Background(), "slow"), scheduler.ErrSkipped)
	close(release)
	assert.NoError(t, <-done)
}

func TestStatuses_NextRunAfterStart(t *testing.T) {
	r := scheduler.New(logging.Nop())
	require.NoError(t, r.Register(scheduler.Task{
		Name: "b", Schedule: "@hourly", Timezone: "Europe/Berlin",
		Handler: func(context.Context) error { return nil },
	}))
	require.NoError(t, r.Register(scheduler.Task{
		Name: "a", Schedule: "@daily",
		Handler: func(context.Context) error { return nil },
	}))

	r.Start()
	t.Cleanup(func() { r.Stop(context.Background()) })

	st := r.Statuses()
	require.Len(t, st, 2)
	assert.Equal(t, "a", st[0].Name)
	assert.Equal(t, "Europe/Berlin", st[1].Timezone)
	assert.NotNil(t, st[0].NextRun)
}
