package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// APIResponse 定義統一的 API 回應結構
type APIResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"` // omitempty 表示如果為空則不顯示
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// 錯誤代碼
const (
	CodeInvalidID    = "ERR_INVALID_ID"
	CodeInvalidInput = "ERR_INVALID_INPUT"
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeInternal     = "ERR_INTERNAL"
)

// SuccessResponse 返回成功的回應
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Status:  true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 返回失敗的回應
func ErrorResponse(c *gin.Context, statusCode int, message string, err string, code string) {
	c.JSON(statusCode, APIResponse{
		Status:  false,
		Message: message,
		Error:   err,
		Code:    code,
	})
}

// AbortWithError 中斷後續處理並返回失敗的回應
func AbortWithError(c *gin.Context, statusCode int, message string, err string, code string) {
	ErrorResponse(c, statusCode, message, err, code)
	c.Abort()
}

// paramID 解析路徑上的正整數 ID，失敗時已寫入回應
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "無效的ID", name+" must be a positive integer", CodeInvalidID)
		return 0, false
	}
	return id, true
}
