package services

import (
	"context"

	"swpmbridge/models"
	"swpmbridge/utils"
)

// 驗證錯誤的 key
const (
	ErrKeyIdentifier = "identifier"
	ErrKeyActionType = "action_type"
)

// LevelLookup 判斷會員等級是否存在
type LevelLookup interface {
	LevelExists(ctx context.Context, level string) (bool, error)
}

// ValidationResult 驗證結果
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// Err 驗證失敗時回傳 *ValidationError
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// Validator 依動作類型檢查會員資料
type Validator struct {
	levels LevelLookup
	hooks  *Hooks
}

func NewValidator(levels LevelLookup, hooks *Hooks) *Validator {
	return &Validator{levels: levels, hooks: hooks}
}

// Validate 檢查會員資料是否符合動作的需求
func (v *Validator) Validate(ctx context.Context, record *models.MemberData, action models.ActionType, opts models.Options) ValidationResult {
	var errs map[string]string

	switch action {
	case models.ActionRegister:
		errs = v.validateRegister(ctx, record, opts)
	case models.ActionUpdate:
		errs = v.validateUpdate(record)
	case models.ActionChangeLevel:
		errs = v.validateChangeLevel(ctx, record)
	default:
		errs = map[string]string{ErrKeyActionType: "Invalid action type"}
	}

	errs = v.hooks.filterValidation(ctx, errs, record, action, opts)

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (v *Validator) validateRegister(ctx context.Context, record *models.MemberData, opts models.Options) map[string]string {
	errs := map[string]string{}

	if record.Email == "" {
		errs[models.AttrEmail] = "Email is required"
	} else if !utils.IsEmail(record.Email) {
		errs[models.AttrEmail] = "Invalid email address"
	}

	if record.Username == "" {
		errs[models.AttrUsername] = "Username is required"
	} else if !utils.IsValidUsername(record.Username) {
		errs[models.AttrUsername] = "Invalid username"
	}

	if record.HasPassword() {
		checkPasswordLength(record, errs)
	} else if opts.PasswordModeOrDefault() == models.PasswordRequireField {
		errs[models.AttrPassword] = "Password is required"
	}

	if record.MembershipLevel == "" {
		errs[models.AttrMembershipLevel] = "Membership level is required"
	} else if !v.levelExists(ctx, record.MembershipLevel) {
		errs[models.AttrMembershipLevel] = "Invalid membership level"
	}

	return errs
}

func (v *Validator) validateUpdate(record *models.MemberData) map[string]string {
	errs := map[string]string{}

	if !record.HasIdentifier() {
		errs[ErrKeyIdentifier] = "Email or username is required to identify the member"
	}
	if record.Email != "" && !utils.IsEmail(record.Email) {
		errs[models.AttrEmail] = "Invalid email address"
	}
	checkPasswordLength(record, errs)

	return errs
}

func (v *Validator) validateChangeLevel(ctx context.Context, record *models.MemberData) map[string]string {
	errs := map[string]string{}

	if !record.HasIdentifier() {
		errs[ErrKeyIdentifier] = "Email or username is required to identify the member"
	}

	if record.MembershipLevel == "" {
		errs[models.AttrMembershipLevel] = "New membership level is required"
	} else if !v.levelExists(ctx, record.MembershipLevel) {
		errs[models.AttrMembershipLevel] = "Invalid membership level"
	}

	return errs
}

// checkPasswordLength 超過 bcrypt 上限的密碼無法雜湊
func checkPasswordLength(record *models.MemberData, errs map[string]string) {
	if len(record.Password) > utils.MaxPasswordBytes {
		errs[models.AttrPassword] = "Password is too long"
	}
}

// levelExists 會員系統無法查詢時不阻擋
func (v *Validator) levelExists(ctx context.Context, level string) bool {
	if v.levels == nil {
		return true
	}
	ok, err := v.levels.LevelExists(ctx, level)
	if err != nil {
		return true
	}
	return ok
}
