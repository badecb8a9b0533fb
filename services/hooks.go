package services

import (
	"context"

	"swpmbridge/models"
)

// RecordFilter 可在動作執行前修改或替換會員資料
type RecordFilter func(ctx context.Context, record *models.MemberData, fields models.FieldValues, cfg *models.IntegrationConfig) *models.MemberData

// BeforeActionFunc 動作執行前的通知
type BeforeActionFunc func(ctx context.Context, action models.ActionType, record *models.MemberData, cfg *models.IntegrationConfig)

// AfterActionFunc 會員資料寫入成功後的通知
type AfterActionFunc func(ctx context.Context, action models.ActionType, memberID int, record *models.MemberData)

// ValidationFilter 可增刪驗證錯誤
type ValidationFilter func(ctx context.Context, errs map[string]string, record *models.MemberData, action models.ActionType, opts models.Options) map[string]string

// PasswordEmailFilter 可改寫密碼通知信的主旨與內容
type PasswordEmailFilter func(subject, body string, email string, ctx PasswordEmailContext) (string, string)

// PasswordGeneratedFunc 密碼信寄出後的通知
type PasswordGeneratedFunc func(ctx context.Context, email string, info PasswordEmailContext)

// Hooks 外部擴充點，依註冊順序執行
type Hooks struct {
	RecordFilters        []RecordFilter
	BeforeAction         []BeforeActionFunc
	AfterAction          []AfterActionFunc
	ValidationFilters    []ValidationFilter
	PasswordEmailFilters []PasswordEmailFilter
	PasswordGenerated    []PasswordGeneratedFunc
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnRecord(f RecordFilter) {
	h.RecordFilters = append(h.RecordFilters, f)
}

func (h *Hooks) OnBeforeAction(f BeforeActionFunc) {
	h.BeforeAction = append(h.BeforeAction, f)
}

func (h *Hooks) OnAfterAction(f AfterActionFunc) {
	h.AfterAction = append(h.AfterAction, f)
}

func (h *Hooks) OnValidate(f ValidationFilter) {
	h.ValidationFilters = append(h.ValidationFilters, f)
}

func (h *Hooks) OnPasswordEmail(f PasswordEmailFilter) {
	h.PasswordEmailFilters = append(h.PasswordEmailFilters, f)
}

func (h *Hooks) OnPasswordGenerated(f PasswordGeneratedFunc) {
	h.PasswordGenerated = append(h.PasswordGenerated, f)
}

func (h *Hooks) filterRecord(ctx context.Context, record *models.MemberData, fields models.FieldValues, cfg *models.IntegrationConfig) *models.MemberData {
	if h == nil {
		return record
	}
	for _, f := range h.RecordFilters {
		if next := f(ctx, record, fields, cfg); next != nil {
			record = next
		}
	}
	return record
}

func (h *Hooks) beforeAction(ctx context.Context, action models.ActionType, record *models.MemberData, cfg *models.IntegrationConfig) {
	if h == nil {
		return
	}
	for _, f := range h.BeforeAction {
		f(ctx, action, record, cfg)
	}
}

func (h *Hooks) afterAction(ctx context.Context, action models.ActionType, memberID int, record *models.MemberData) {
	if h == nil {
		return
	}
	for _, f := range h.AfterAction {
		f(ctx, action, memberID, record)
	}
}

func (h *Hooks) filterValidation(ctx context.Context, errs map[string]string, record *models.MemberData, action models.ActionType, opts models.Options) map[string]string {
	if h == nil {
		return errs
	}
	for _, f := range h.ValidationFilters {
		if next := f(ctx, errs, record, action, opts); next != nil {
			errs = next
		}
	}
	return errs
}

func (h *Hooks) filterPasswordEmail(subject, body, email string, info PasswordEmailContext) (string, string) {
	if h == nil {
		return subject, body
	}
	for _, f := range h.PasswordEmailFilters {
		subject, body = f(subject, body, email, info)
	}
	return subject, body
}

func (h *Hooks) passwordGenerated(ctx context.Context, email string, info PasswordEmailContext) {
	if h == nil {
		return
	}
	for _, f := range h.PasswordGenerated {
		f(ctx, email, info)
	}
}
