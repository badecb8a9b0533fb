package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// ActionType 表單送出後要執行的會員動作
type ActionType string

const (
	ActionRegister    ActionType = "register_member"
	ActionUpdate      ActionType = "update_member"
	ActionChangeLevel ActionType = "change_level"
)

// DuplicatePolicy 註冊時遇到重複會員的處理方式
type DuplicatePolicy string

const (
	DuplicateReject DuplicatePolicy = "reject"
	DuplicateUpdate DuplicatePolicy = "update"
	DuplicateSkip   DuplicatePolicy = "skip"
)

// PasswordMode 密碼來源
type PasswordMode string

const (
	PasswordRequireField PasswordMode = "require_field"
	PasswordAutoGenerate PasswordMode = "auto_generate"
)

// Options 表單整合的行為選項
type Options struct {
	OnDuplicate  DuplicatePolicy `json:"on_duplicate" binding:"omitempty,oneof=reject update skip"`
	PasswordMode PasswordMode    `json:"password_mode" binding:"omitempty,oneof=require_field auto_generate"`
	AutoLogin    bool            `json:"auto_login"`
	SendWelcome  bool            `json:"send_welcome"`
	RedirectURL  string          `json:"redirect_url"`
}

// DuplicatePolicyOrDefault 未設定時使用 reject
func (o Options) DuplicatePolicyOrDefault() DuplicatePolicy {
	switch o.OnDuplicate {
	case DuplicateUpdate, DuplicateSkip:
		return o.OnDuplicate
	}
	return DuplicateReject
}

// PasswordModeOrDefault 未設定時要求表單提供密碼
func (o Options) PasswordModeOrDefault() PasswordMode {
	if o.PasswordMode == PasswordAutoGenerate {
		return PasswordAutoGenerate
	}
	return PasswordRequireField
}

// FieldMap 表單欄位 ID（或子欄位 ID，如 "1_first"）對應到會員屬性
type FieldMap map[string]string

// IntegrationConfig 每個表單的會員整合設定
type IntegrationConfig struct {
	Enabled         bool       `json:"enabled"`
	ActionType      ActionType `json:"action_type" binding:"omitempty,oneof=register_member update_member change_level"`
	FieldMap        FieldMap   `json:"field_map"`
	FieldMapCustom  FieldMap   `json:"field_map_custom,omitempty"`
	MembershipLevel string     `json:"membership_level"`
	Options         Options    `json:"options"`
}

// DefaultIntegrationConfig 表單尚未設定整合時的預設值
func DefaultIntegrationConfig() IntegrationConfig {
	return IntegrationConfig{
		Enabled:    false,
		ActionType: ActionRegister,
		FieldMap:   FieldMap{},
		Options: Options{
			OnDuplicate:  DuplicateReject,
			PasswordMode: PasswordRequireField,
			AutoLogin:    false,
			SendWelcome:  true,
		},
	}
}

// FormField 表單建構器中的欄位定義
type FormField struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Label  string `json:"label"`
	Format string `json:"format,omitempty"`
}

// Form 表單與其整合設定
type Form struct {
	FormID    int                                   `json:"form_id" gorm:"column:form_id;primaryKey;autoIncrement:false"`
	Title     string                                `json:"title" gorm:"column:title;type:varchar(255)"`
	Fields    datatypes.JSONSlice[FormField]        `json:"fields" gorm:"column:fields"`
	Settings  datatypes.JSONType[IntegrationConfig] `json:"settings" gorm:"column:settings"`
	CreatedAt time.Time                             `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time                             `json:"updated_at" gorm:"column:updated_at"`
}

func (Form) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_wpforms_forms")
}

// Integration 回傳表單的整合設定
func (f *Form) Integration() IntegrationConfig {
	if f == nil {
		return DefaultIntegrationConfig()
	}
	cfg := f.Settings.Data()
	if cfg.ActionType == "" {
		cfg.ActionType = ActionRegister
	}
	if cfg.FieldMap == nil {
		cfg.FieldMap = FieldMap{}
	}
	return cfg
}
