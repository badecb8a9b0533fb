package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swpmbridge/models"
	"swpmbridge/services"
)

// GetMember 根據 ID 查詢會員與自訂欄位
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	member, err := h.store.GetMemberByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get member", zap.Int("member_id", id), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "伺服器錯誤", err.Error(), CodeInternal)
		return
	}
	if member == nil {
		ErrorResponse(c, http.StatusNotFound, "會員不存在", "Member not found", CodeNotFound)
		return
	}

	meta, err := h.store.GetMemberMeta(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to get member meta", zap.Int("member_id", id), zap.Error(err))
		meta = nil
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", member.ToResponse(meta))
}

// GetMembershipLevels 查詢所有會員等級
func (h *Handler) GetMembershipLevels(c *gin.Context) {
	levels, err := h.store.GetMembershipLevels(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get membership levels", zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "查詢會員等級失敗", err.Error(), CodeInternal)
		return
	}
	if levels == nil {
		levels = []models.LevelOption{}
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", levels)
}

// GetLogs 查詢活動日誌，支援 level、form_id、limit、offset、order
func (h *Handler) GetLogs(c *gin.Context) {
	filter := services.LogFilter{
		Level: c.Query("level"),
		Order: c.DefaultQuery("order", "DESC"),
	}

	for name, dst := range map[string]*int{
		"form_id": &filter.FormID,
		"limit":   &filter.Limit,
		"offset":  &filter.Offset,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ErrorResponse(c, http.StatusBadRequest, "無效的查詢參數", name+" must be a non-negative integer", CodeInvalidInput)
			return
		}
		*dst = n
	}

	logs, err := h.activity.GetLogs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to query activity logs", zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "查詢日誌失敗", err.Error(), CodeInternal)
		return
	}
	if logs == nil {
		logs = []models.LogEntry{}
	}

	SuccessResponse(c, http.StatusOK, "查詢成功", logs)
}
