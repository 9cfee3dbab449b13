package rest

import (
	"context"
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crudflow/errors"
	"crudflow/logging"
)

// Response 成功响应包装
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	// Committed 为 true 表示变更已生效，仅 after 钩子失败
	Committed bool `json:"committed,omitempty"`
	Data      any  `json:"data,omitempty"`
}

// StatusOf 错误码到 HTTP 状态码
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	err = errors.Normalize(err)
	if errors.IsPostCommit(err) {
		return http.StatusInternalServerError
	}
	switch errors.GetErrorCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeDuplicate, errors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Code: 0, Message: "success", Data: data})
}

// reply 写出结果；after 钩子失败时同时返回已提交的数据
func reply(c *gin.Context, status int, data any, err error) {
	if err == nil {
		ok(c, status, data)
		return
	}
	if errors.IsPostCommit(err) {
		respondError(c, err, data)
		return
	}
	respondError(c, err, nil)
}

func respondError(c *gin.Context, err error, committed any) {
	err = errors.Normalize(err)
	status := StatusOf(err)
	resp := ErrorResponse{
		Code:      string(errors.GetErrorCode(err)),
		RequestID: RequestIDFrom(c),
	}

	var appErr *errors.AppError
	switch {
	case errors.IsPostCommit(err):
		resp.Error = "变更已提交，后续处理失败"
		resp.Committed = true
		resp.Data = committed
	case status == http.StatusInternalServerError:
		resp.Error = "内部服务器错误"
	case stdErrors.As(err, &appErr):
		resp.Error = appErr.Message()
		resp.Details = appErr.Details()
	default:
		resp.Error = err.Error()
	}

	if status >= http.StatusInternalServerError && !stdErrors.Is(err, context.Canceled) {
		loggerFrom(c).Error(c.Request.Context(), "request failed",
			append(logFields(c, status), logging.Error(err))...)
	}
	c.AbortWithStatusJSON(status, resp)
}
