package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"swpmbridge/models"
)

var levelPriority = map[string]int{
	models.LogLevelDebug:   0,
	models.LogLevelInfo:    1,
	models.LogLevelWarning: 2,
	models.LogLevelError:   3,
}

// LogContext 活動日誌的附加資訊；form_id、entry_id、user_id 另存成欄位
type LogContext map[string]any

// LogFilter 查詢活動日誌的條件
type LogFilter struct {
	Level  string
	FormID int
	Limit  int
	Offset int
	Order  string
}

// ActivityLogger 寫入整合活動日誌，同時輸出到 zap
type ActivityLogger struct {
	db       *gorm.DB
	logger   *zap.Logger
	minLevel string
	now      func() time.Time
}

func NewActivityLogger(db *gorm.DB, logger *zap.Logger, minLevel string) *ActivityLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := levelPriority[minLevel]; !ok {
		minLevel = models.LogLevelError
	}
	return &ActivityLogger{db: db, logger: logger, minLevel: minLevel, now: time.Now}
}

func (a *ActivityLogger) Debug(ctx context.Context, message string, lc LogContext) {
	a.Log(ctx, models.LogLevelDebug, message, lc)
}

func (a *ActivityLogger) Info(ctx context.Context, message string, lc LogContext) {
	a.Log(ctx, models.LogLevelInfo, message, lc)
}

func (a *ActivityLogger) Warning(ctx context.Context, message string, lc LogContext) {
	a.Log(ctx, models.LogLevelWarning, message, lc)
}

func (a *ActivityLogger) Error(ctx context.Context, message string, lc LogContext) {
	a.Log(ctx, models.LogLevelError, message, lc)
}

// Log 低於最低等級的訊息直接略過；寫入失敗只記到 zap
func (a *ActivityLogger) Log(ctx context.Context, level, message string, lc LogContext) {
	if a == nil || !a.shouldLog(level) {
		return
	}

	a.logger.Log(zapLevel(level), message, zapFields(lc)...)

	if a.db == nil {
		return
	}

	entry := models.LogEntry{
		Level:     level,
		Message:   message,
		FormID:    intField(lc, "form_id"),
		EntryID:   intField(lc, "entry_id"),
		CreatedAt: a.now().UTC(),
	}
	if userID := intField(lc, "user_id"); userID != nil && *userID > 0 {
		id := uint64(*userID)
		entry.UserID = &id
	}
	if len(lc) > 0 {
		raw, err := json.Marshal(lc)
		if err != nil {
			a.logger.Warn("Failed to encode log context", zap.Error(err))
		} else {
			entry.Context = datatypes.JSON(raw)
		}
	}

	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		a.logger.Warn("Failed to write activity log", zap.Error(err))
	}
}

func (a *ActivityLogger) shouldLog(level string) bool {
	return levelPriority[level] >= levelPriority[a.minLevel]
}

// GetLogs 依條件查詢活動日誌
func (a *ActivityLogger) GetLogs(ctx context.Context, filter LogFilter) ([]models.LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "ASC") {
		order = "ASC"
	}

	query := a.db.WithContext(ctx).Model(&models.LogEntry{})
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.FormID > 0 {
		query = query.Where("form_id = ?", filter.FormID)
	}

	var entries []models.LogEntry
	if err := query.
		Order("created_at " + order).
		Order("id " + order).
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	return entries, nil
}

// Cleanup 刪除超過保留天數的日誌，回傳刪除筆數
func (a *ActivityLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := a.now().UTC().AddDate(0, 0, -retentionDays)

	result := a.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up activity logs: %w", result.Error)
	}
	a.logger.Info("Cleaned up activity logs", zap.Int64("deleted", result.RowsAffected), zap.Int("retention_days", retentionDays))
	return result.RowsAffected, nil
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case models.LogLevelDebug:
		return zapcore.DebugLevel
	case models.LogLevelWarning:
		return zapcore.WarnLevel
	case models.LogLevelError:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func zapFields(lc LogContext) []zap.Field {
	fields := make([]zap.Field, 0, len(lc))
	for _, k := range models.SortedKeys(lc) {
		fields = append(fields, zap.Any(k, lc[k]))
	}
	return fields
}

func intField(lc LogContext, key string) *int {
	v, ok := lc[key]
	if !ok {
		return nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case uint64:
		n = int(x)
	case float64:
		n = int(x)
	default:
		return nil
	}
	return &n
}
