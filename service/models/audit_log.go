/*
 * @module service/models/audit_log
 * @description 查询审计日志的 GORM 模型
 * @rules 表名固定为 audit_logs，本身不产生审计事件
 * @dependencies gorm.io/gorm
 * @refs service/audit/store_sink.go
 */

package models

import (
	"time"
)

// AuditEntity 系统自身的审计日志实体名，查询事件不会为它再次写审计
const AuditEntity = "AuditLog"

// AuditLog 查询事件审计记录
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Entity     string    `json:"entity" gorm:"size:128;index"`
	Operation  string    `json:"operation" gorm:"size:32"`
	DurationMs int64     `json:"duration_ms"`
	Count      int64     `json:"count"`
	Success    bool      `json:"success"`
	Metadata   JSONB     `json:"metadata" gorm:"type:json"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

// TableName 审计表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
