/*
 * @module service/audit/store_sink
 * @description 落库旁路：查询事件写入 audit_logs 表，并提供按保留期清理
 * @architecture 分层架构 - 数据访问层
 * @stateFlow 查询事件 -> AuditLog -> INSERT；清理任务 -> DELETE WHERE created_at < cutoff
 * @rules 写入失败只记录告警；仅关系型方言启用
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/models/audit_log.go, service/cleanup/log_cleanup_service.go
 */

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contractstore-service/service/models"

	"gorm.io/gorm"
)

// StoreSink 将查询事件写入审计表
// 审计表自身的查询由仓储过滤，不会再次写入
type StoreSink struct {
	db *gorm.DB
}

// NewStoreSink 创建审计表输出端
func NewStoreSink(db *gorm.DB) *StoreSink {
	return &StoreSink{db: db}
}

func (s *StoreSink) Emit(ctx context.Context, event models.QueryEvent) {
	entry := &models.AuditLog{
		ID:         event.ID,
		Entity:     event.Entity,
		Operation:  event.Operation,
		DurationMs: event.Duration.Milliseconds(),
		Count:      event.Count,
		Success:    event.Success,
		Metadata:   models.JSONB(event.Metadata),
		CreatedAt:  event.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		slog.Error("StoreSink.Emit - 写入审计日志失败", "entity", event.Entity, "error", err)
	}
}

// DeleteBefore 删除早于 cutoff 的审计记录
func (s *StoreSink) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除审计日志失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
