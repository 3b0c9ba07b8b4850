/*
 * @module service/cleanup/log_cleanup_service
 * @description 审计日志清理服务，负责定期清理超过保留期的查询审计记录
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 定时触发 -> 获取分布式锁 -> 计算截止时间 -> 执行清理 -> 记录结果
 * @rules 确保日志清理不影响系统正常运行；多实例部署时同一时刻只有一个实例执行
 * @dependencies github.com/robfig/cron/v3, contractstore-service/service/distributed_lock
 * @refs service/audit/store_sink.go
 */

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contractstore-service/service/distributed_lock"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultRetentionDays 默认审计日志保留天数
	DefaultRetentionDays = 30
	// DefaultSchedule 每天凌晨2点执行，Cron表达式：秒 分 时 日 月 周
	DefaultSchedule = "0 0 2 * * *"

	lockKey = "audit-cleanup"
	lockTTL = 10 * time.Minute
)

// AuditPruner 删除早于截止时间的审计记录
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options 清理服务参数
type Options struct {
	RetentionDays int
	Schedule      string
	Lock          *distributed_lock.LockExecutor // 为空时不加锁
	Now           func() time.Time
}

// LogCleanupService 日志清理服务
type LogCleanupService struct {
	pruner        AuditPruner
	retentionDays int
	schedule      string
	lock          *distributed_lock.LockExecutor
	now           func() time.Time
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewLogCleanupService 创建日志清理服务实例
func NewLogCleanupService(pruner AuditPruner, opts Options) *LogCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &LogCleanupService{
		pruner:        pruner,
		retentionDays: opts.RetentionDays,
		schedule:      opts.Schedule,
		lock:          opts.Lock,
		now:           opts.Now,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// CleanupExpiredLogs 清理过期审计日志
func (s *LogCleanupService) CleanupExpiredLogs(ctx context.Context) (int64, error) {
	if s.lock == nil {
		return s.cleanup(ctx)
	}

	var deleted int64
	err := s.lock.ExecuteWithLock(ctx, lockKey, lockTTL, func() error {
		var err error
		deleted, err = s.cleanup(ctx)
		return err
	})
	if errors.Is(err, distributed_lock.ErrLockHeld) {
		slog.Info("其他实例正在清理审计日志，跳过本次执行")
		return 0, nil
	}
	return deleted, err
}

func (s *LogCleanupService) cleanup(ctx context.Context) (int64, error) {
	startTime := s.now()
	cutoff := startTime.AddDate(0, 0, -s.retentionDays)

	slog.Debug("清理审计日志", "cutoff_date", cutoff.Format("2006-01-02 15:04:05"), "retention_days", s.retentionDays)

	deleted, err := s.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	slog.Info("审计日志清理完成",
		"deleted_count", deleted,
		"retention_days", s.retentionDays,
		"duration_ms", time.Since(startTime).Milliseconds())
	return deleted, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *LogCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("日志清理调度器已经启动")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		slog.Info("开始执行定时日志清理任务")
		if _, err := s.CleanupExpiredLogs(s.ctx); err != nil {
			slog.Error("定时日志清理任务失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("日志清理调度器启动成功", "schedule", s.schedule, "retention_days", s.retentionDays)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *LogCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false

	slog.Info("日志清理调度器已停止")
}
