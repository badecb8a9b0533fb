package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swpmbridge/models"
	"swpmbridge/services"
)

type submissionRequest struct {
	EntryID int                `json:"entry_id"`
	Fields  models.FieldValues `json:"fields" binding:"required"`
}

type validateRequest struct {
	Errors models.FormErrors `json:"errors"`
	Fields map[string]any    `json:"fields"`
}

// SubmitForm 表單送出完成的 hook；結果一律以 200 回傳，錯誤訊息放在 outcome
func (h *Handler) SubmitForm(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid submission payload", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusBadRequest, "無效的輸入資料", err.Error(), CodeInvalidInput)
		return
	}
	for id, field := range req.Fields {
		if field.ID == "" {
			field.ID = id
			req.Fields[id] = field
		}
	}

	form, err := h.forms.GetForm(c.Request.Context(), formID)
	if err != nil {
		h.logger.Error("Failed to load form", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取表單失敗", services.GenericFailureMessage, CodeInternal)
		return
	}

	out := h.submissions.HandleSubmission(c.Request.Context(), req.Fields, req.EntryID, form)
	h.setSessionCookies(c, out.Sessions)

	SuccessResponse(c, http.StatusOK, "處理完成", out)
}

// ValidateForm 表單儲存前的驗證 hook，回傳合併後的錯誤
func (h *Handler) ValidateForm(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid validation payload", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusBadRequest, "無效的輸入資料", err.Error(), CodeInvalidInput)
		return
	}

	form, err := h.forms.GetForm(c.Request.Context(), formID)
	if err != nil {
		h.logger.Error("Failed to load form", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取表單失敗", services.GenericFailureMessage, CodeInternal)
		return
	}

	errs := h.submissions.ValidateSubmission(c.Request.Context(), req.Errors, form, req.Fields)
	SuccessResponse(c, http.StatusOK, "驗證完成", gin.H{
		"errors":    errs,
		"has_error": errs.Has(formID),
	})
}

// PopFormError 取出表單暫存的錯誤訊息，只能取一次
func (h *Handler) PopFormError(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	message, found, err := h.submissions.PopError(c.Request.Context(), formID)
	if err != nil {
		h.logger.Error("Failed to pop form error", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取錯誤訊息失敗", services.GenericFailureMessage, CodeInternal)
		return
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", gin.H{
		"found":   found,
		"message": message,
	})
}

func (h *Handler) setSessionCookies(c *gin.Context, sessions []services.Session) {
	for _, s := range sessions {
		maxAge := int(time.Until(s.ExpiresAt).Seconds())
		if maxAge <= 0 {
			continue
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.CookieName, s.Token, maxAge, "/", "", h.secureCookie, true)
	}
}
