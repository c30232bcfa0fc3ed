package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/testutil"
)

func TestRegisterTask_Validation(t *testing.T) {
	s, err := New(testutil.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Interval: time.Hour, Func: noop}))
	require.Error(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Interval: time.Hour, Func: noop}), "duplicate id")
	require.Error(t, s.RegisterTask(TaskConfig{ID: "b", Name: "B", Func: noop}), "no schedule")
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "c", Name: "C", Cron: "0 2 * * *", Func: noop}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "1h0m0s", tasks[0].Interval)
	assert.Equal(t, "0 2 * * *", tasks[1].Cron)
}

func TestRunNow(t *testing.T) {
	s, err := New(testutil.NopLogger())
	require.NoError(t, err)

	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:       "poll",
		Name:     "Poll",
		Interval: time.Hour,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return errors.New("client offline")
		},
	}))
	s.Start()

	require.NoError(t, s.RunNow("poll"))
	require.Eventually(t, func() bool {
		info, err := s.GetTask("poll")
		return err == nil && info.Running
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.RunNow("poll"), ErrTaskRunning)
	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)

	close(release)
	require.Eventually(t, func() bool {
		info, err := s.GetTask("poll")
		return err == nil && !info.Running && info.LastRun != nil
	}, time.Second, 5*time.Millisecond)

	info, err := s.GetTask("poll")
	require.NoError(t, err)
	assert.Equal(t, "client offline", info.LastError)
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, s.Stop())
}

func TestStop_CancelsRunningTask(t *testing.T) {
	s, err := New(testutil.NopLogger())
	require.NoError(t, err)

	started := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "sync",
		Name:       "Sync",
		Interval:   time.Hour,
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	s.Start()
	<-started

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
