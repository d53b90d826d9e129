package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(time.Second),
		WithIgnoreRecordNotFoundError(false),
	)
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.False(t, gl.ignoreNotFound)

	warn, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.level)
	assert.Equal(t, gormlogger.Info, gl.level, "LogMode returns a copy")
}

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) { return `INSERT INTO "reconciliation_records"`, 1 }

	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		begin     time.Time
		err       error
		wantLevel zapcore.Level
		wantMsg   string
		wantNone  bool
	}{
		{
			name:      "query at info",
			level:     gormlogger.Info,
			begin:     time.Now(),
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "journal statement",
		},
		{
			name:      "error",
			level:     gormlogger.Error,
			begin:     time.Now(),
			err:       errors.New("duplicate key"),
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "journal statement failed",
		},
		{
			name:     "record not found is ignored",
			level:    gormlogger.Error,
			begin:    time.Now(),
			err:      gormlogger.ErrRecordNotFound,
			wantNone: true,
		},
		{
			name:      "slow query",
			level:     gormlogger.Warn,
			begin:     time.Now().Add(-time.Second),
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "slow journal statement",
		},
		{
			name:     "silent",
			level:    gormlogger.Silent,
			begin:    time.Now().Add(-time.Second),
			err:      errors.New("boom"),
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := newObservedGormLogger(tt.level)
			gl.Trace(context.Background(), tt.begin, query, tt.err)

			if tt.wantNone {
				assert.Empty(t, recorded.All())
				return
			}
			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, int64(1), entry.ContextMap()["rows"])
		})
	}
}

func TestGormLogger_Trace_DeliveryFields(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	ctx, _ := WithDeliveryID(context.Background(), zap.NewNop(), "delivery-7")
	ctx, _ = WithCorrelationKey(ctx, zap.NewNop(), "visit-3")
	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-1")
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, nil)

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "delivery-7", fields["delivery_id"])
	assert.Equal(t, "visit-3", fields["correlation_key"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "journal", recorded.All()[0].LoggerName)
}

func TestGormLogger_SlowThresholdDisabled(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))
	gl.Trace(context.Background(), time.Now().Add(-time.Hour), func() (string, int64) { return "SELECT 1", 0 }, nil)
	assert.Empty(t, recorded.All())
}

func TestGormLogger_Printf(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "suppressed %d", 1)
	gl.Warn(ctx, "warned %s", "x")
	gl.Error(ctx, "failed %s", "y")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "warned x", recorded.All()[0].Message)
	assert.Equal(t, "failed y", recorded.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
		" Info ":  gormlogger.Info,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapGormLogLevel(in), in)
	}
}
