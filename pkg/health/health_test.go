package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5*time.Second, c.timeout)
	assert.Equal(t, 3, c.failureThreshold)

	c = New(WithTimeout(time.Second), WithFailureThreshold(1))
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 1, c.failureThreshold)

	c = New(WithFailureThreshold(0))
	assert.Equal(t, 3, c.failureThreshold, "non-positive threshold keeps default")
}

func TestNoChecksIsHealthy(t *testing.T) {
	status, err := New().CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestFailureThresholdSuppressesTransientFailures(t *testing.T) {
	c := New(WithFailureThreshold(3))
	c.AddReadinessCheck(NewCheck("flaky", func(ctx context.Context) error {
		return errors.New("down")
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		status, err := c.CheckReadiness(ctx)
		require.NoError(t, err, "failure %d is below the threshold", i+1)
		assert.True(t, status.Healthy)
	}

	status, err := c.CheckReadiness(ctx)
	require.Error(t, err)
	assert.False(t, status.Healthy)
	require.Len(t, status.Checks, 1)
	assert.Equal(t, "down", status.Checks[0].Error)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	var fail bool
	c := New(WithFailureThreshold(2))
	c.AddReadinessCheck(NewCheck("dep", func(ctx context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}))
	ctx := context.Background()

	fail = true
	_, err := c.CheckReadiness(ctx)
	require.NoError(t, err)

	fail = false
	_, err = c.CheckReadiness(ctx)
	require.NoError(t, err)

	fail = true
	_, err = c.CheckReadiness(ctx)
	require.NoError(t, err, "counter restarted after the success")
}

func TestLivenessAndReadinessAreIndependent(t *testing.T) {
	c := New(WithFailureThreshold(1))
	c.AddLivenessCheck(NewCheck("process", func(ctx context.Context) error { return nil }))
	c.AddReadinessCheck(NewCheck("dep", func(ctx context.Context) error { return errors.New("down") }))
	ctx := context.Background()

	_, err := c.CheckLiveness(ctx)
	assert.NoError(t, err)

	_, err = c.CheckReadiness(ctx)
	assert.Error(t, err)
}

func TestCheckTimeout(t *testing.T) {
	c := New(WithTimeout(20*time.Millisecond), WithFailureThreshold(1))
	c.AddReadinessCheck(NewCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	status, err := c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
