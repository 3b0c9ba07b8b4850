/*
 * @module service/migration/writer
 * @description 迁移产物写入器，将迁移产物连同渲染后的 DDL 写为带时间戳的 JSON 文件
 * @architecture 基础设施层 - 文件持久化
 * @stateFlow 产物 -> 渲染 SQL -> (可选) 获取分布式锁 -> 独占创建文件
 * @rules 同名文件已存在时中止写入并返回 MIGRATION_FILE_COLLISION，绝不覆盖
 * @dependencies contractstore-service/service/distributed_lock, contractstore-service/service/database
 * @refs service/migration/service.go
 */

package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contractstore-service/service/database"
	"contractstore-service/service/distributed_lock"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"
)

const lockTTL = 30 * time.Second

// MigrationFile 写入磁盘的迁移文件内容
type MigrationFile struct {
	Name      string                      `json:"name"`
	Timestamp int64                       `json:"timestamp"`
	Artifact  *models.MigrationArtifact   `json:"artifact"`
	SQL       *database.RenderedMigration `json:"sql,omitempty"`
}

// Writer 迁移文件写入器
type Writer struct {
	dir      string
	renderer *database.SchemaService
	executor *distributed_lock.LockExecutor
}

// NewWriter 创建写入器，lock 可以为 nil
func NewWriter(dir string, dialect database.Dialect, lock distributed_lock.DistributedLock) *Writer {
	w := &Writer{dir: dir}
	if dialect.IsRelational() {
		w.renderer = database.NewSchemaService(dialect)
	}
	if lock != nil {
		w.executor = distributed_lock.NewLockExecutor(lock)
	}
	return w
}

// FileName 迁移文件名：<unix_ms>-<Base>.json，删除迁移为 <unix_ms>-Drop<Base>.json
func FileName(artifact *models.MigrationArtifact, ts time.Time) string {
	base := database.ContractBaseName(artifact.ContractName)
	if artifact.Kind == models.ChangeKindDrop {
		base = "Drop" + base
	}
	return fmt.Sprintf("%d-%s.json", ts.UnixMilli(), base)
}

// Write 写入迁移文件并返回文件路径
func (w *Writer) Write(ctx context.Context, artifact *models.MigrationArtifact, ts time.Time) (string, error) {
	name := FileName(artifact, ts)
	path := filepath.Join(w.dir, name)

	file := &MigrationFile{
		Name:      name,
		Timestamp: ts.UnixMilli(),
		Artifact:  artifact,
	}
	if w.renderer != nil {
		rendered, err := w.renderer.RenderArtifact(artifact)
		if err != nil {
			return "", fmt.Errorf("渲染迁移语句失败: %w", err)
		}
		file.SQL = rendered
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化迁移产物失败: %w", err)
	}

	write := func() error {
		return w.writeExclusive(path, data)
	}

	if w.executor != nil {
		err = w.executor.ExecuteWithLock(ctx, name, lockTTL, write)
		if errors.Is(err, distributed_lock.ErrLockHeld) {
			return "", apperrors.NewMigrationCollision(path)
		}
	} else {
		err = write()
	}
	if err != nil {
		return "", err
	}

	slog.Info("迁移文件已写入", "path", path, "kind", artifact.Kind, "up", len(artifact.Up), "down", len(artifact.Down))
	return path, nil
}

func (w *Writer) writeExclusive(path string, data []byte) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("创建迁移目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return apperrors.NewMigrationCollision(path)
		}
		return fmt.Errorf("创建迁移文件失败: %w", err)
	}
	return finishFile(path, f, data)
}

// finishFile 写入并关闭迁移文件，任一步失败都删除未写完的文件
func finishFile(path string, f io.WriteCloser, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		removePartial(path)
		return fmt.Errorf("写入迁移文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		removePartial(path)
		return fmt.Errorf("关闭迁移文件失败: %w", err)
	}
	return nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Writer.removePartial - 删除未写完的迁移文件失败", "path", path, "error", err)
	}
}
