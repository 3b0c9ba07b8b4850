/*
 * @module api/controllers/migration_controller
 * @description 迁移控制器，预览两个契约快照之间的迁移，或将已发布快照与当前契约对比后写出迁移文件
 * @architecture MVC架构 - 控制器层
 * @stateFlow 请求快照 -> 变更检测 -> 迁移生成 -> (关系型) DDL 渲染 / 迁移文件写入
 * @rules 预览不落盘；无变化时 artifact 为空；迁移文件已存在时返回409
 * @dependencies contractstore-service/service/migration, github.com/go-chi/render
 * @refs service/migration/service.go
 */

package controllers

import (
	"net/http"
	"time"

	"contractstore-service/service/contract"
	"contractstore-service/service/database"
	"contractstore-service/service/migration"
	"contractstore-service/service/models"

	"github.com/go-chi/render"
)

// MigrationController 迁移控制器
type MigrationController struct {
	migrations *migration.Service
	current    *contract.Registry
	renderer   *database.SchemaService
}

// NewMigrationController 创建迁移控制器，current 为当前加载的契约
func NewMigrationController(migrations *migration.Service, current *contract.Registry, dialect database.Dialect) *MigrationController {
	c := &MigrationController{migrations: migrations, current: current}
	if dialect.IsRelational() {
		c.renderer = database.NewSchemaService(dialect)
	}
	return c
}

// PreviewRequest 迁移预览请求
type PreviewRequest struct {
	Previous *models.ContractSnapshot `json:"previous"`
	Next     *models.ContractSnapshot `json:"next"`
}

// PreviewResponse 迁移预览结果
type PreviewResponse struct {
	Changed  bool                        `json:"changed"`
	Artifact *models.MigrationArtifact   `json:"artifact,omitempty"`
	SQL      *database.RenderedMigration `json:"sql,omitempty"`
}

// Preview 预览迁移
func (c *MigrationController) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数格式错误", err))
		return
	}
	if req.Previous == nil && req.Next == nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "previous 与 next 不能同时为空", nil))
		return
	}
	for _, snapshot := range []*models.ContractSnapshot{req.Previous, req.Next} {
		if snapshot == nil {
			continue
		}
		if err := snapshot.Validate(); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "契约快照无效: "+err.Error(), err))
			return
		}
	}

	artifact, err := c.migrations.Plan(req.Previous, req.Next)
	if err != nil {
		status := statusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse(status, "迁移生成失败: "+err.Error(), err))
		return
	}
	if artifact == nil {
		render.JSON(w, r, SuccessResponse("契约无变化", PreviewResponse{Changed: false}))
		return
	}

	response := PreviewResponse{Changed: true, Artifact: artifact}
	if c.renderer != nil {
		sql, err := c.renderer.RenderArtifact(artifact)
		if err != nil {
			status := statusFromError(err)
			render.Status(r, status)
			render.JSON(w, r, ErrorResponse(status, "DDL 渲染失败: "+err.Error(), err))
			return
		}
		response.SQL = sql
	}
	render.JSON(w, r, SuccessResponse("迁移预览成功", response))
}

// SyncRequest 迁移同步请求，previous 为上一次发布的契约快照
type SyncRequest struct {
	Previous []*models.ContractSnapshot `json:"previous"`
}

// Sync 对比上一次发布的快照与当前契约，写出迁移文件
func (c *MigrationController) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数格式错误", err))
		return
	}

	previous := contract.NewRegistry()
	if err := previous.Load(req.Previous...); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "契约快照无效: "+err.Error(), err))
		return
	}

	written, err := c.migrations.Sync(r.Context(), previous, c.current, time.Now())
	if err != nil {
		status := statusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, ErrorResponse(status, "迁移同步失败: "+err.Error(), err))
		return
	}
	if written == nil {
		written = []migration.WrittenMigration{}
	}
	render.JSON(w, r, SuccessResponse("迁移同步成功", written))
}
