package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// 活動日誌等級
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// LogEntry 整合的活動日誌（swpm_wpforms_logs）
type LogEntry struct {
	ID        uint64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Level     string         `json:"level" gorm:"column:level;type:varchar(20);not null;default:'info';index"`
	Message   string         `json:"message" gorm:"column:message;type:text;not null"`
	Context   datatypes.JSON `json:"context" gorm:"column:context"`
	FormID    *int           `json:"form_id" gorm:"column:form_id;index"`
	EntryID   *int           `json:"entry_id" gorm:"column:entry_id"`
	UserID    *uint64        `json:"user_id" gorm:"column:user_id"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;not null;index"`
}

func (LogEntry) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_wpforms_logs")
}

// Transient 有期限的鍵值（表單錯誤訊息暫存）
type Transient struct {
	ID        int       `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"column:name;type:varchar(191);not null;uniqueIndex"`
	Value     string    `json:"value" gorm:"column:value;type:text"`
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at;not null;index"`
}

func (Transient) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_wpforms_transients")
}
