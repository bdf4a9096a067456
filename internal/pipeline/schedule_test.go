package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousDay(t *testing.T) {
	assert.Equal(t, "2025-01-15", PreviousDay(time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12-31", PreviousDay(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-29", PreviousDay(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every morning", func(context.Context, string) error { return nil })
	assert.Error(t, err)
}

func TestSchedulerRunOnce(t *testing.T) {
	var dates []string
	s, err := NewScheduler("0 9 * * *", func(_ context.Context, date string) error {
		dates = append(dates, date)
		return errors.New("ignored")
	})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC) }

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"2025-01-15"}, dates)
}

func TestSchedulerStartStopsWithContext(t *testing.T) {
	s, err := NewScheduler("@every 1h", func(context.Context, string) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.Len(t, s.cron.Entries(), 1)
	cancel()
}
