package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swpmbridge/models"
)

func TestActivityLogger_MinLevel(t *testing.T) {
	db := newTestDB(t)
	logger := NewActivityLogger(db, nil, models.LogLevelWarning)
	ctx := context.Background()

	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warning(ctx, "warning message", nil)
	logger.Error(ctx, "error message", LogContext{"form_id": 3, "entry_id": 8, "user_id": 21, "note": "x"})

	logs, err := logger.GetLogs(ctx, LogFilter{Order: "ASC"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "warning message", logs[0].Message)
	assert.Equal(t, models.LogLevelError, logs[1].Level)

	entry := logs[1]
	require.NotNil(t, entry.FormID)
	assert.Equal(t, 3, *entry.FormID)
	require.NotNil(t, entry.EntryID)
	assert.Equal(t, 8, *entry.EntryID)
	require.NotNil(t, entry.UserID)
	assert.EqualValues(t, 21, *entry.UserID)

	var lc map[string]any
	require.NoError(t, json.Unmarshal(entry.Context, &lc))
	assert.Equal(t, "x", lc["note"])
}

func TestActivityLogger_InvalidLevelFallsBackToError(t *testing.T) {
	db := newTestDB(t)
	logger := NewActivityLogger(db, nil, "verbose")
	ctx := context.Background()

	logger.Warning(ctx, "dropped", nil)
	logger.Error(ctx, "kept", nil)

	logs, err := logger.GetLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "kept", logs[0].Message)
}

func TestActivityLogger_GetLogsFilters(t *testing.T) {
	db := newTestDB(t)
	logger := NewActivityLogger(db, nil, models.LogLevelDebug)
	ctx := context.Background()

	at := testNow
	logger.now = func() time.Time { return at }
	for i := 0; i < 5; i++ {
		at = testNow.Add(time.Duration(i) * time.Minute)
		formID := 1
		if i%2 == 1 {
			formID = 2
		}
		logger.Info(ctx, "entry", LogContext{"form_id": formID, "seq": i})
	}
	logger.Error(ctx, "boom", LogContext{"form_id": 1})

	logs, err := logger.GetLogs(ctx, LogFilter{FormID: 1, Level: models.LogLevelInfo})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].CreatedAt.After(logs[2].CreatedAt))

	logs, err = logger.GetLogs(ctx, LogFilter{Limit: 2, Offset: 1, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, testNow.Add(time.Minute), logs[0].CreatedAt.UTC())
}

func TestActivityLogger_Cleanup(t *testing.T) {
	db := newTestDB(t)
	logger := NewActivityLogger(db, nil, models.LogLevelDebug)
	ctx := context.Background()

	logger.now = func() time.Time { return testNow.AddDate(0, 0, -40) }
	logger.Info(ctx, "old", nil)
	logger.now = func() time.Time { return testNow.AddDate(0, 0, -5) }
	logger.Info(ctx, "recent", nil)
	logger.now = fixedClock

	deleted, err := logger.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	logs, err := logger.GetLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "recent", logs[0].Message)
}

func TestActivityLogger_NilIsSafe(t *testing.T) {
	var logger *ActivityLogger
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), "nothing", LogContext{"form_id": 1})
	})
}
