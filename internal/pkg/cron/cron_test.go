package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndList(t *testing.T) {
	s := New()
	s.Register(Job{
		Name:        "purge",
		Description: "drop stale rows",
		Interval:    time.Hour,
		Fn:          func(ctx context.Context) error { return nil },
	})
	s.Register(Job{
		Name:     "probe",
		Interval: 5 * time.Minute,
		Fn:       func(ctx context.Context) error { return nil },
	})

	items := s.List()
	require.Len(t, items, 2)

	byName := make(map[string]ListItem, len(items))
	for _, item := range items {
		byName[item.Name] = item
	}
	assert.Equal(t, "drop stale rows", byName["purge"].Description)
	assert.Equal(t, StatusIdle, byName["purge"].Status)
	assert.Nil(t, byName["purge"].LastRunAt)
	require.NotNil(t, byName["probe"].NextDate)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *byName["probe"].NextDate, time.Minute)
}

func TestRunWaitReturnsJobError(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	var calls atomic.Int32
	s.Register(Job{
		Name:     "broken",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			calls.Add(1)
			return boom
		},
	})

	err := s.RunWait(context.Background(), "broken")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())

	task, err := s.GetTask("broken")
	require.NoError(t, err)
	assert.Equal(t, StatusReject, task.Status)
	assert.Equal(t, "boom", task.Message)

	// A successful run clears the recorded failure.
	s.Register(Job{
		Name:     "fine",
		Interval: time.Hour,
		Fn:       func(ctx context.Context) error { return nil },
	})
	require.NoError(t, s.RunWait(context.Background(), "fine"))
	task, err = s.GetTask("fine")
	require.NoError(t, err)
	assert.Equal(t, StatusFulfill, task.Status)
	assert.Empty(t, task.Message)
}

func TestRunWaitUnknownJob(t *testing.T) {
	s := New()
	assert.Error(t, s.RunWait(context.Background(), "ghost"))
	assert.Error(t, s.Run(context.Background(), "ghost"))
	_, err := s.GetTask("ghost")
	assert.Error(t, err)
}

func TestRunWaitRejectsOverlap(t *testing.T) {
	s := New()
	release := make(chan struct{})
	started := make(chan struct{})
	s.Register(Job{
		Name:     "slow",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- s.RunWait(context.Background(), "slow") }()

	<-started
	assert.ErrorIs(t, s.RunWait(context.Background(), "slow"), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestRunIsNonBlocking(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	s.Register(Job{
		Name:     "async",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})

	require.NoError(t, s.Run(context.Background(), "async"))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
