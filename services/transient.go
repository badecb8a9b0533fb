package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swpmbridge/models"
)

// FormErrorTTL 表單錯誤訊息保留時間
const FormErrorTTL = 60 * time.Second

const formErrorPrefix = "swpm_wpforms_error_"

// TransientStore 有期限的鍵值，過期的值視為不存在
type TransientStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTransientStore(db *gorm.DB) *TransientStore {
	return &TransientStore{db: db, now: time.Now}
}

// Set 寫入或覆蓋
func (s *TransientStore) Set(ctx context.Context, name, value string, ttl time.Duration) error {
	row := models.Transient{Name: name, Value: value, ExpiresAt: s.now().UTC().Add(ttl)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to set transient %s: %w", name, err)
	}
	return nil
}

// Get 取得未過期的值
func (s *TransientStore) Get(ctx context.Context, name string) (string, bool, error) {
	var row models.Transient
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get transient %s: %w", name, err)
	}
	if !row.ExpiresAt.After(s.now().UTC()) {
		_ = s.Delete(ctx, name)
		return "", false, nil
	}
	return row.Value, true, nil
}

// Pop 取得後刪除
func (s *TransientStore) Pop(ctx context.Context, name string) (string, bool, error) {
	value, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.Delete(ctx, name); err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *TransientStore) Delete(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Transient{}).Error; err != nil {
		return fmt.Errorf("failed to delete transient %s: %w", name, err)
	}
	return nil
}

// PurgeExpired 刪除所有過期的值
func (s *TransientStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&models.Transient{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge transients: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ErrorStash 暫存每個表單最後一次的錯誤訊息，供下次顯示表單時取出
type ErrorStash struct {
	transients *TransientStore
}

func NewErrorStash(transients *TransientStore) *ErrorStash {
	return &ErrorStash{transients: transients}
}

func (e *ErrorStash) Stash(ctx context.Context, formID int, message string) error {
	return e.transients.Set(ctx, formErrorKey(formID), message, FormErrorTTL)
}

func (e *ErrorStash) Pop(ctx context.Context, formID int) (string, bool, error) {
	return e.transients.Pop(ctx, formErrorKey(formID))
}

func formErrorKey(formID int) string {
	return formErrorPrefix + strconv.Itoa(formID)
}
