package controllers

import (
	"net/http"

	apperrors "contractstore-service/service/errors"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Code   string      `json:"code,omitempty" example:"NOT_FOUND"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Limit  int         `json:"limit" example:"10"`
	Offset int         `json:"offset" example:"0"`
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) APIResponse {
	return APIResponse{Status: 0, Msg: msg, Data: data}
}

// ErrorResponse 错误响应，结构化错误附带错误码
func ErrorResponse(status int, msg string, err error) APIResponse {
	return APIResponse{Status: status, Msg: msg, Code: apperrors.GetCode(err)}
}

// statusFromError 按错误码映射HTTP状态码
func statusFromError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.CodeEntityNotRegistered, apperrors.CodeNotFound, apperrors.CodeNoValidResult:
		return http.StatusNotFound
	case apperrors.CodeInvalidContract, apperrors.CodeInvalidIdentifier:
		return http.StatusBadRequest
	case apperrors.CodeUnsupportedOperation:
		return http.StatusNotImplemented
	case apperrors.CodeMigrationFileCollision:
		return http.StatusConflict
	case apperrors.CodeOperationDegraded, apperrors.CodeConnectionInit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
