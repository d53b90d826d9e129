package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestParseDailySchedule(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"default", "", 3, 0, false},
		{"explicit", "30 4 * * *", 4, 30, false},
		{"extra whitespace", "  15   1   *   *   * ", 1, 15, false},
		{"wildcard minute", "* 5 * * *", 5, 0, false},
		{"bad minute", "61 2 * * *", 0, 0, true},
		{"bad hour", "0 24 * * *", 0, 0, true},
		{"not a number", "x 2 * * *", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, err := ParseDailySchedule(tt.expr)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, h)
			assert.Equal(t, tt.wantMinute, m)
		})
	}
}

func TestNewRetentionTrigger_InvalidDays(t *testing.T) {
	cfg := DefaultRetentionConfig()
	cfg.RetentionDays = 0
	_, err := NewRetentionTrigger(cfg, &MockPurger{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRetentionTrigger_RunOnce(t *testing.T) {
	purger := &MockPurger{}
	trigger, err := NewRetentionTrigger(DefaultRetentionConfig(), purger, zaptest.NewLogger(t))
	require.NoError(t, err)

	now := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return now }
	purger.On("PurgeBefore", mock.Anything, now.AddDate(0, 0, -90)).Return(int64(12), nil).Once()

	n, err := trigger.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	purger.AssertExpectations(t)
}

func TestRetentionTrigger_RunOnceError(t *testing.T) {
	purger := &MockPurger{}
	trigger, err := NewRetentionTrigger(DefaultRetentionConfig(), purger, nil)
	require.NoError(t, err)

	purger.On("PurgeBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
	_, err = trigger.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestRetentionTrigger_CheckAndPurgeOncePerDay(t *testing.T) {
	purger := &MockPurger{}
	trigger, err := NewRetentionTrigger(DefaultRetentionConfig(), purger, nil)
	require.NoError(t, err)
	purger.On("PurgeBefore", mock.Anything, mock.Anything).Return(int64(1), nil)

	now := time.Date(2024, 5, 10, 2, 59, 0, 0, time.UTC)
	trigger.now = func() time.Time { return now }
	assert.False(t, trigger.checkAndPurge(context.Background()))

	now = now.Add(time.Minute)
	assert.True(t, trigger.checkAndPurge(context.Background()))
	assert.False(t, trigger.checkAndPurge(context.Background()))

	now = now.AddDate(0, 0, 1)
	assert.True(t, trigger.checkAndPurge(context.Background()))
	purger.AssertNumberOfCalls(t, "PurgeBefore", 2)
}

func TestRetentionTrigger_StartStop(t *testing.T) {
	trigger, err := NewRetentionTrigger(DefaultRetentionConfig(), &MockPurger{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
}
