package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	t.Run("captures records", func(t *testing.T) {
		logger, rec := NewTestLogger(t)

		logger.Info("cache miss", slog.String("key", "draft:1"))
		logger.Error("cache fault", slog.Int("attempt", 2))

		records := rec.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "draft:1", records[0].String("key"))
		assert.Equal(t, int64(2), records[1].Attrs["attempt"])
		assert.Equal(t, "2", records[1].String("attempt"))
		assert.Empty(t, records[1].String("missing"))
	})

	t.Run("filters by level and message", func(t *testing.T) {
		logger, rec := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, rec.RecordsAt(slog.LevelError), 1)
		assert.Len(t, rec.Find("info msg"), 1)
		assert.Empty(t, rec.Find("info"))
		assert.True(t, rec.Contains("warn"))
	})

	t.Run("derived loggers share the store", func(t *testing.T) {
		logger, rec := NewTestLogger(t)

		child := logger.With("component", "cache").WithGroup("redis").With("db", 0)
		child.Info("connected", "addr", "localhost:6379")

		require.Equal(t, 1, rec.Count())
		attrs := rec.Records()[0].Attrs
		assert.Equal(t, "cache", attrs["component"])
		assert.Equal(t, int64(0), attrs["redis.db"])
		assert.Equal(t, "localhost:6379", attrs["redis.addr"])
	})

	t.Run("group attributes flatten", func(t *testing.T) {
		logger, rec := NewTestLogger(nil)

		logger.Info("request", slog.Group("http", slog.String("method", "GET"), slog.Int("status", 200)))

		attrs := rec.Records()[0].Attrs
		assert.Equal(t, "GET", attrs["http.method"])
		assert.Equal(t, int64(200), attrs["http.status"])
	})

	t.Run("reset", func(t *testing.T) {
		logger, rec := NewTestLogger(nil)
		logger.Info("one")
		logger.Info("two")
		require.Equal(t, 2, rec.Count())

		rec.Reset()
		assert.Zero(t, rec.Count())
		assert.False(t, rec.Contains("one"))
	})
}
