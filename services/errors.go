package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrStoreUnavailable 會員資料庫無法使用
var ErrStoreUnavailable = errors.New("membership store unavailable")

// ErrInvalidCredentials 帳號或密碼錯誤
var ErrInvalidCredentials = errors.New("invalid username or password")

// GenericFailureMessage 對使用者顯示的通用錯誤訊息
const GenericFailureMessage = "An error occurred processing your membership."

// ValidationError 欄位驗證錯誤，key 為會員屬性名稱
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Errors[k])
	}
	return strings.Join(msgs, " ")
}

// DuplicateError email 或使用者名稱已存在
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("A member with this %s already exists.", e.Field)
}

// NotFoundError 更新或變更等級時找不到會員
type NotFoundError struct{}

func (e *NotFoundError) Error() string {
	return "Member not found"
}

// StoreError 資料庫寫入失敗；Error() 只回傳通用訊息，細節在 Err
type StoreError struct {
	Op  string
	Msg string
	Err error
}

func (e *StoreError) Error() string {
	return e.Msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Detail 記錄日誌用的完整錯誤
func (e *StoreError) Detail() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// UnexpectedError 流程中發生的非預期錯誤（含 panic）
type UnexpectedError struct {
	Cause any
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Cause)
}

// UserMessage 將錯誤轉為可顯示給使用者的訊息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Msg
	}
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) {
		return GenericFailureMessage
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	var duplicate *DuplicateError
	if errors.As(err, &duplicate) {
		return duplicate.Error()
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	return err.Error()
}

// ErrorDetail 記錄日誌用的詳細錯誤
func ErrorDetail(err error) string {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Detail()
	}
	return err.Error()
}

// duplicateKeyField 判斷是否為唯一鍵衝突，回傳衝突欄位
func duplicateKeyField(err error) (string, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		if strings.Contains(mysqlErr.Message, "user_name") {
			return "username", true
		}
		return "email", true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "email", true
	}
	return "", false
}

func newStoreError(op, msg string, err error) error {
	if field, ok := duplicateKeyField(err); ok {
		return &DuplicateError{Field: field}
	}
	return &StoreError{Op: op, Msg: msg, Err: err}
}
