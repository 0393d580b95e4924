package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_FireRunsHandlersInOrder(t *testing.T) {
	l := NewLifecycle()

	var calls []string
	l.OnWillSaveState(func(_ context.Context, r SaveReason) error {
		calls = append(calls, "a:"+r.String())
		return nil
	})
	l.OnWillSaveState(func(_ context.Context, r SaveReason) error {
		calls = append(calls, "b:"+r.String())
		return nil
	})

	require.NoError(t, l.Fire(context.Background(), ReasonPeriodic))
	assert.Equal(t, []string{"a:periodic", "b:periodic"}, calls)
}

func TestLifecycle_ErrorsAreJoined(t *testing.T) {
	l := NewLifecycle()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	ran := 0
	l.OnWillSaveState(func(context.Context, SaveReason) error { ran++; return errA })
	l.OnWillSaveState(func(context.Context, SaveReason) error { ran++; return errB })

	err := l.Fire(context.Background(), ReasonShutdown)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 2, ran)
}

func TestLifecycle_Unsubscribe(t *testing.T) {
	l := NewLifecycle()

	ran := false
	remove := l.OnWillSaveState(func(context.Context, SaveReason) error { ran = true; return nil })
	remove()

	require.NoError(t, l.Fire(context.Background(), ReasonShutdown))
	assert.False(t, ran)
}

func TestLifecycle_ShutdownOnce(t *testing.T) {
	l := NewLifecycle()

	var reasons []SaveReason
	l.OnWillSaveState(func(_ context.Context, r SaveReason) error {
		reasons = append(reasons, r)
		return nil
	})

	require.NoError(t, l.Shutdown(context.Background()))
	require.NoError(t, l.Shutdown(context.Background()))
	assert.Equal(t, []SaveReason{ReasonShutdown}, reasons)
}
