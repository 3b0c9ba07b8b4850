/*
 * @module service/migration/service
 * @description 迁移服务：组合检测器、生成器与写入器，按契约注册表批量生成迁移
 * @architecture 服务层 - 编排
 * @stateFlow 上一版本注册表 + 当前注册表 -> 逐契约检测 -> 生成 -> 写入
 * @rules 无变化的契约不产生文件；同一批次的文件时间戳依次递增 1ms
 * @refs service/migration/detector.go, service/migration/generator.go, service/migration/writer.go
 */

package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"contractstore-service/service/contract"
	"contractstore-service/service/models"
)

// Service 迁移服务，串联检测、生成与写入
type Service struct {
	detector  *Detector
	generator *Generator
	writer    *Writer
}

// NewService 创建迁移服务，writer 为 nil 时只做规划不落盘
func NewService(generator *Generator, writer *Writer) *Service {
	return &Service{
		detector:  NewDetector(),
		generator: generator,
		writer:    writer,
	}
}

// Plan 检测并生成单个契约的迁移，无变化时返回 nil, nil
func (s *Service) Plan(previous, next *models.ContractSnapshot) (*models.MigrationArtifact, error) {
	change := s.detector.Detect(previous, next)
	if change == nil {
		return nil, nil
	}
	return s.generator.Generate(change)
}

// WrittenMigration 已写入的迁移
type WrittenMigration struct {
	Path     string                    `json:"path"`
	Artifact *models.MigrationArtifact `json:"artifact"`
}

// Sync 对比两个注册表中的全部契约并写出迁移文件
// 同一批次的文件使用递增的毫秒时间戳，保证顺序与唯一性
func (s *Service) Sync(ctx context.Context, previous, current *contract.Registry, now time.Time) ([]WrittenMigration, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("迁移服务未配置写入器")
	}

	names := unionNames(previous, current)
	var written []WrittenMigration
	ts := now
	for _, name := range names {
		prev := lookup(previous, name)
		next := lookup(current, name)

		artifact, err := s.Plan(prev, next)
		if err != nil {
			return written, fmt.Errorf("生成契约 %s 的迁移失败: %w", name, err)
		}
		if artifact == nil {
			continue
		}

		path, err := s.writer.Write(ctx, artifact, ts)
		if err != nil {
			return written, err
		}
		written = append(written, WrittenMigration{Path: path, Artifact: artifact})
		ts = ts.Add(time.Millisecond)
	}

	slog.Info("迁移同步完成", "contracts", len(names), "written", len(written))
	return written, nil
}

func lookup(r *contract.Registry, name string) *models.ContractSnapshot {
	if r == nil {
		return nil
	}
	c, _ := r.Get(name)
	return c
}

func unionNames(a, b *contract.Registry) []string {
	seen := make(map[string]struct{})
	for _, r := range []*contract.Registry{a, b} {
		if r == nil {
			continue
		}
		for _, n := range r.Names() {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
