package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"swpmbridge/config"
	"swpmbridge/models"
	"swpmbridge/utils"
)

// Outcome 一次表單送出的處理結果
type Outcome struct {
	Processed   bool              `json:"processed"`
	Action      models.ActionType `json:"action,omitempty"`
	Success     bool              `json:"success"`
	MemberID    int               `json:"member_id,omitempty"`
	Skipped     bool              `json:"skipped,omitempty"`
	Error       string            `json:"error,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Sessions    []Session         `json:"sessions,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
}

// SubmissionHandler 表單送出與送出前驗證的入口
type SubmissionHandler struct {
	settings   config.Settings
	builder    *RecordBuilder
	validator  *Validator
	duplicates *DuplicateResolver
	router     *ActionRouter
	store      MemberStore
	sessions   *SessionService
	stash      *ErrorStash
	hooks      *Hooks
	activity   *ActivityLogger
}

// SubmissionDeps 建立 SubmissionHandler 所需的元件
type SubmissionDeps struct {
	Settings   config.Settings
	Builder    *RecordBuilder
	Validator  *Validator
	Duplicates *DuplicateResolver
	Router     *ActionRouter
	Store      MemberStore
	Sessions   *SessionService
	Stash      *ErrorStash
	Hooks      *Hooks
	Activity   *ActivityLogger
}

func NewSubmissionHandler(deps SubmissionDeps) *SubmissionHandler {
	return &SubmissionHandler{
		settings:   deps.Settings,
		builder:    deps.Builder,
		validator:  deps.Validator,
		duplicates: deps.Duplicates,
		router:     deps.Router,
		store:      deps.Store,
		sessions:   deps.Sessions,
		stash:      deps.Stash,
		hooks:      deps.Hooks,
		activity:   deps.Activity,
	}
}

// HandleSubmission 處理已完成的表單送出；任何錯誤都不會往外拋
func (h *SubmissionHandler) HandleSubmission(ctx context.Context, fields models.FieldValues, entryID int, form *models.Form) (out *Outcome) {
	out = &Outcome{}
	if form == nil || !h.settings.Enabled {
		return out
	}
	cfg := form.Integration()
	if !cfg.Enabled {
		return out
	}

	formID := form.FormID
	out.Processed = true
	out.Action = cfg.ActionType
	out.TraceID = uuid.NewString()
	lc := LogContext{"form_id": formID, "entry_id": entryID, "trace_id": out.TraceID}

	defer func() {
		if r := recover(); r != nil {
			h.activity.Error(ctx, "Exception in submission handler", with(lc, LogContext{"error": fmt.Sprint(r)}))
			h.fail(ctx, out, formID, &UnexpectedError{Cause: r})
		}
	}()

	h.activity.Debug(ctx, "Processing submission", with(lc, LogContext{"action_type": string(cfg.ActionType)}))

	record, err := h.builder.Build(ctx, fields, cfg, true)
	if err != nil {
		h.activity.Error(ctx, "Failed to build member record", with(lc, LogContext{"error": err.Error()}))
		h.fail(ctx, out, formID, &UnexpectedError{Cause: err})
		return out
	}

	record = h.hooks.filterRecord(ctx, record, fields, &cfg)
	h.hooks.beforeAction(ctx, cfg.ActionType, record, &cfg)

	if result := h.validator.Validate(ctx, record, cfg.ActionType, cfg.Options); !result.Valid {
		err := result.Err()
		h.activity.Error(ctx, "SWPM action failed", with(lc, LogContext{"error": err.Error()}))
		h.fail(ctx, out, formID, err)
		return out
	}

	result := h.router.Route(ctx, record, cfg)
	if !result.Success {
		h.activity.Error(ctx, "SWPM action failed", with(lc, LogContext{"error": ErrorDetail(result.Err)}))
		h.fail(ctx, out, formID, result.Err)
		return out
	}

	out.Success = true
	out.MemberID = result.MemberID
	out.Skipped = result.Skipped
	h.activity.Info(ctx, "SWPM action completed", with(lc, LogContext{
		"action_type": string(cfg.ActionType),
		"member_id":   result.MemberID,
		"skipped":     result.Skipped,
	}))

	// 略過的重複送出沒有寫入任何資料，不替既有會員登入
	if cfg.ActionType == models.ActionRegister && cfg.Options.AutoLogin && result.MemberID > 0 && !result.Skipped {
		out.Sessions = h.autoLogin(ctx, result.MemberID, record)
	}

	if cfg.Options.RedirectURL != "" {
		out.RedirectURL = utils.SanitizeURL(cfg.Options.RedirectURL)
	}

	return out
}

// fail 記下錯誤並暫存給表單顯示
func (h *SubmissionHandler) fail(ctx context.Context, out *Outcome, formID int, err error) {
	message := UserMessage(err)
	if message == "" {
		message = "Membership action failed"
	}
	out.Success = false
	out.MemberID = 0
	out.Skipped = false
	out.Sessions = nil
	out.Error = message

	if h.stash == nil {
		return
	}
	if stashErr := h.stash.Stash(ctx, formID, message); stashErr != nil {
		h.activity.Warning(ctx, "Failed to store form error", LogContext{"form_id": formID, "error": stashErr.Error()})
	}
}

// autoLogin 建立帳號與會員系統的 session；失敗只記錄
func (h *SubmissionHandler) autoLogin(ctx context.Context, memberID int, record *models.MemberData) (sessions []Session) {
	defer func() {
		if r := recover(); r != nil {
			h.activity.Warning(ctx, "Auto-login failed", LogContext{"member_id": memberID, "error": fmt.Sprint(r)})
			sessions = nil
		}
	}()

	if h.sessions == nil {
		return nil
	}

	member, err := h.store.GetMemberByID(ctx, memberID)
	if err != nil {
		h.activity.Warning(ctx, "Auto-login failed", LogContext{"member_id": memberID, "error": err.Error()})
		return nil
	}
	if member == nil || member.WPUserID == nil {
		h.activity.Debug(ctx, "No WP user for auto-login", LogContext{"member_id": memberID})
		return nil
	}

	account, err := h.sessions.LoginAccount(ctx, *member.WPUserID)
	if err != nil {
		h.activity.Warning(ctx, "Auto-login failed", LogContext{"member_id": memberID, "error": err.Error()})
		return nil
	}
	sessions = append(sessions, *account)

	if memberSession, err := h.sessions.LoginMember(ctx, record.Username, record.Password); err != nil {
		h.activity.Warning(ctx, "Membership login failed", LogContext{"member_id": memberID, "error": err.Error()})
	} else {
		sessions = append(sessions, *memberSession)
	}

	h.activity.Info(ctx, "Auto-login completed", LogContext{"member_id": memberID, "wp_user_id": *member.WPUserID})
	return sessions
}

// ValidateSubmission 送出前驗證，將錯誤對應回表單欄位
func (h *SubmissionHandler) ValidateSubmission(ctx context.Context, errs models.FormErrors, form *models.Form, posted map[string]any) models.FormErrors {
	if errs == nil {
		errs = models.FormErrors{}
	}
	if form == nil || !h.settings.Enabled {
		return errs
	}
	cfg := form.Integration()
	if !cfg.Enabled || len(posted) == 0 {
		return errs
	}
	formID := form.FormID

	fields := models.PostedFieldValues(posted)
	record, err := h.builder.Build(ctx, fields, cfg, false)
	if err != nil {
		h.activity.Error(ctx, "Failed to build member record for validation", LogContext{"form_id": formID, "error": err.Error()})
		errs.Set(formID, models.FormErrorHeader, GenericFailureMessage)
		return errs
	}
	record = h.hooks.filterRecord(ctx, record, fields, &cfg)

	result := h.validator.Validate(ctx, record, cfg.ActionType, cfg.Options)
	if !result.Valid {
		for _, attr := range models.SortedKeys(result.Errors) {
			fieldID, ok := FieldIDForAttribute(cfg.FieldMap, attr)
			if !ok {
				fieldID = models.FormErrorHeader
			}
			errs.Set(formID, fieldID, result.Errors[attr])
		}
	}

	if cfg.ActionType == models.ActionRegister {
		check, err := h.duplicates.Check(ctx, record)
		if err != nil {
			h.activity.Warning(ctx, "Duplicate check failed during validation", LogContext{"form_id": formID, "error": err.Error()})
			return errs
		}
		resolution := h.duplicates.Resolve(check, cfg.Options.DuplicatePolicyOrDefault())
		if resolution.Action == ResolutionReject && resolution.Err != nil {
			errs.Set(formID, models.FormErrorHeader, resolution.Err.Error())
		}
	}

	return errs
}

// PopError 取出表單暫存的錯誤訊息
func (h *SubmissionHandler) PopError(ctx context.Context, formID int) (string, bool, error) {
	if h.stash == nil {
		return "", false, nil
	}
	return h.stash.Pop(ctx, formID)
}

func with(base, extra LogContext) LogContext {
	out := make(LogContext, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
