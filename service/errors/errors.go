/*
 * @module service/errors
 * @description 结构化错误类型，按类别和错误码区分连接、实体注册、方言支持、降级和迁移写入等失败
 * @architecture 基础设施层 - 错误定义
 * @rules 驱动层错误在仓储边界转换为带类别的错误值，调用方通过 errors.Is 判断
 * @dependencies errors, fmt
 */

// Package errors 提供带类别和错误码的结构化错误。
package errors

import (
	"errors"
	"fmt"
)

// Category 错误类别
type Category string

const (
	CategoryConnection Category = "CONNECTION"
	CategoryRegistry   Category = "REGISTRY"
	CategoryDialect    Category = "DIALECT"
	CategoryDriver     Category = "DRIVER"
	CategoryQuery      Category = "QUERY"
	CategoryMigration  Category = "MIGRATION"
	CategoryContract   Category = "CONTRACT"
)

// 错误码
const (
	CodeConnectionInit         = "CONNECTION_INIT"
	CodeEntityNotRegistered    = "ENTITY_NOT_REGISTERED"
	CodeUnsupportedOperation   = "UNSUPPORTED_DIALECT_OPERATION"
	CodeOperationDegraded      = "OPERATION_DEGRADED"
	CodeAttributionCoercion    = "ATTRIBUTION_COERCION"
	CodeMigrationFileCollision = "MIGRATION_FILE_COLLISION"
	CodeNotFound               = "NOT_FOUND"
	CodeNoValidResult          = "NO_VALID_RESULT"
	CodeInvalidIdentifier      = "INVALID_IDENTIFIER"
	CodeInvalidContract        = "INVALID_CONTRACT"
)

// Error 结构化错误
type Error struct {
	Category Category
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 类别和错误码都相同即视为同一错误
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// WithDetails 返回附带详情的副本
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New 创建错误
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}

// 哨兵错误，用于 errors.Is 比较
var (
	ErrConnectionInit         = New(CategoryConnection, CodeConnectionInit, "data source failed to initialize")
	ErrEntityNotRegistered    = New(CategoryRegistry, CodeEntityNotRegistered, "entity not registered")
	ErrUnsupportedOperation   = New(CategoryDialect, CodeUnsupportedOperation, "operation unsupported for this dialect")
	ErrOperationDegraded      = New(CategoryDriver, CodeOperationDegraded, "driver operation failed")
	ErrAttributionCoercion    = New(CategoryQuery, CodeAttributionCoercion, "attribution identifier could not be coerced")
	ErrMigrationFileCollision = New(CategoryMigration, CodeMigrationFileCollision, "migration file already exists")
	ErrNotFound               = New(CategoryQuery, CodeNotFound, "record not found")
	ErrNoValidResult          = New(CategoryQuery, CodeNoValidResult, "no valid result")
	ErrInvalidIdentifier      = New(CategoryQuery, CodeInvalidIdentifier, "invalid identifier")
	ErrInvalidContract        = New(CategoryContract, CodeInvalidContract, "invalid contract snapshot")
)

func NewConnectionError(message string, cause error) *Error {
	return Wrap(CategoryConnection, CodeConnectionInit, message, cause)
}

func NewEntityNotRegistered(entity string) *Error {
	return New(CategoryRegistry, CodeEntityNotRegistered, fmt.Sprintf("entity %q not registered", entity))
}

func NewUnsupported(operation, dialect string) *Error {
	return New(CategoryDialect, CodeUnsupportedOperation,
		fmt.Sprintf("%s is unsupported for dialect %s", operation, dialect))
}

func NewDegraded(operation string, cause error) *Error {
	return Wrap(CategoryDriver, CodeOperationDegraded, operation+" failed", cause)
}

func NewInvalidIdentifier(value interface{}, cause error) *Error {
	return Wrap(CategoryQuery, CodeInvalidIdentifier, fmt.Sprintf("cannot coerce %v to identifier", value), cause)
}

func NewMigrationCollision(path string) *Error {
	return New(CategoryMigration, CodeMigrationFileCollision, fmt.Sprintf("migration %s already exists", path))
}

func NewInvalidContract(message string) *Error {
	return New(CategoryContract, CodeInvalidContract, message)
}

// GetCode 提取错误链中的错误码，非结构化错误返回空字符串
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetCategory 提取错误链中的类别
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
