/*
 * @module api/controllers/admin_controller
 * @description 数据库管理控制器，提供库、表、字段、索引的查看与索引维护
 * @architecture MVC架构 - 控制器层
 * @stateFlow HTTP请求 -> Repository 管理操作 -> 统一响应
 * @rules 方言不支持的操作返回501，实体或记录不存在返回404
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/repository/admin.go
 */

package controllers

import (
	"context"
	"net/http"

	"contractstore-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// AdminRepository 管理操作
type AdminRepository interface {
	ListDatabases(ctx context.Context) (*models.DatabasesResult, error)
	ListTables(ctx context.Context) (*models.TablesResult, error)
	ListIndexes(ctx context.Context, table string) ([]models.IndexInfo, error)
	ListFields(ctx context.Context, table string) ([]models.FieldInfo, error)
	UpdateIndex(ctx context.Context, table string, index models.IndexSpec) error
	RemoveIndex(ctx context.Context, table, name string) error
}

// AdminController 数据库管理控制器
type AdminController struct {
	repo AdminRepository
}

// NewAdminController 创建数据库管理控制器
func NewAdminController(repo AdminRepository) *AdminController {
	return &AdminController{repo: repo}
}

func (c *AdminController) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFromError(err)
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse(status, msg+": "+err.Error(), err))
}

// ListDatabases 数据库列表
func (c *AdminController) ListDatabases(w http.ResponseWriter, r *http.Request) {
	result, err := c.repo.ListDatabases(r.Context())
	if err != nil {
		c.fail(w, r, "获取数据库列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取数据库列表成功", result))
}

// ListTables 表列表
func (c *AdminController) ListTables(w http.ResponseWriter, r *http.Request) {
	result, err := c.repo.ListTables(r.Context())
	if err != nil {
		c.fail(w, r, "获取表列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取表列表成功", result))
}

// ListFields 字段列表
func (c *AdminController) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := c.repo.ListFields(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		c.fail(w, r, "获取字段列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取字段列表成功", fields))
}

// ListIndexes 索引列表
func (c *AdminController) ListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := c.repo.ListIndexes(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		c.fail(w, r, "获取索引列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取索引列表成功", indexes))
}

// UpdateIndex 重建索引
func (c *AdminController) UpdateIndex(w http.ResponseWriter, r *http.Request) {
	var index models.IndexSpec
	if err := render.DecodeJSON(r.Body, &index); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数格式错误", err))
		return
	}
	if index.Name == "" || len(index.Fields) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "索引名称和字段不能为空", nil))
		return
	}

	if err := c.repo.UpdateIndex(r.Context(), chi.URLParam(r, "table"), index); err != nil {
		c.fail(w, r, "索引更新失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("索引更新成功", index))
}

// RemoveIndex 删除索引
func (c *AdminController) RemoveIndex(w http.ResponseWriter, r *http.Request) {
	if err := c.repo.RemoveIndex(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "name")); err != nil {
		c.fail(w, r, "索引删除失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("索引删除成功", nil))
}
