package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"swpmbridge/models"
	"swpmbridge/services"
)

type formResponse struct {
	FormID   int                      `json:"form_id"`
	Title    string                   `json:"title"`
	Fields   []models.FormField       `json:"fields"`
	Settings models.IntegrationConfig `json:"settings"`
}

type saveFormRequest struct {
	Title    string                   `json:"title"`
	Fields   []models.FormField       `json:"fields"`
	Settings models.IntegrationConfig `json:"settings"`
}

func toFormResponse(formID int, form *models.Form) formResponse {
	resp := formResponse{FormID: formID, Fields: []models.FormField{}, Settings: form.Integration()}
	if form != nil {
		resp.Title = form.Title
		if len(form.Fields) > 0 {
			resp.Fields = form.Fields
		}
	}
	return resp
}

// GetForm 查詢表單設定；尚未設定的表單回傳預設值
func (h *Handler) GetForm(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	form, err := h.forms.GetForm(c.Request.Context(), formID)
	if err != nil {
		h.logger.Error("Failed to load form", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取表單失敗", err.Error(), CodeInternal)
		return
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", toFormResponse(formID, form))
}

// SaveForm 儲存表單與整合設定
func (h *Handler) SaveForm(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req saveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "無效的輸入資料", err.Error(), CodeInvalidInput)
		return
	}

	form := &models.Form{
		FormID:   formID,
		Title:    req.Title,
		Fields:   datatypes.NewJSONSlice(req.Fields),
		Settings: datatypes.NewJSONType(req.Settings),
	}
	if err := h.forms.SaveForm(c.Request.Context(), form); err != nil {
		h.logger.Error("Failed to save form", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "儲存表單失敗", err.Error(), CodeInternal)
		return
	}
	h.logger.Info("Form settings saved", zap.Int("form_id", formID), zap.Bool("enabled", req.Settings.Enabled))

	saved, err := h.forms.GetForm(c.Request.Context(), formID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "讀取表單失敗", err.Error(), CodeInternal)
		return
	}
	SuccessResponse(c, http.StatusOK, "儲存成功", toFormResponse(formID, saved))
}

// GetFormMappings 表單可對應的欄位與會員屬性
func (h *Handler) GetFormMappings(c *gin.Context) {
	formID, ok := paramID(c, "id")
	if !ok {
		return
	}

	form, err := h.forms.GetForm(c.Request.Context(), formID)
	if err != nil {
		h.logger.Error("Failed to load form", zap.Int("form_id", formID), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取表單失敗", err.Error(), CodeInternal)
		return
	}
	if form == nil {
		ErrorResponse(c, http.StatusNotFound, "表單不存在", "form not found", CodeNotFound)
		return
	}

	targets, err := h.forms.MappingTargets(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list mapping targets", zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "讀取對應選項失敗", err.Error(), CodeInternal)
		return
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", gin.H{
		"fields":  services.MappableFields(form),
		"targets": targets,
	})
}
