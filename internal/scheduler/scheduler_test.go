package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_PublishesPeriodically(t *testing.T) {
	var runs atomic.Int32
	s, err := New(func(context.Context) error {
		if runs.Add(1) == 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	require.NoError(t, err)

	id, err := s.SchedulePublish(20 * time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RejectsBadInterval(t *testing.T) {
	s, err := New(func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	_, err = s.SchedulePublish(0)
	assert.Error(t, err)
	require.NoError(t, s.Stop(context.Background()))
}
