/*
 * @module service/repository/admin
 * @description 仓储管理操作：库、表、字段、索引的查看与变更
 * @architecture 分层架构 - 数据访问层
 * @stateFlow 管理请求 -> 表名校验 -> 驱动执行
 * @rules 关系型表名需为合法标识符；方言不支持的操作由驱动返回 UNSUPPORTED_DIALECT_OPERATION
 * @refs service/repository/driver.go, api/controllers/admin_controller.go
 */

package repository

import (
	"context"
	"fmt"

	"contractstore-service/service/database"
	"contractstore-service/service/models"
)

// ListDatabases 列出数据库
func (r *Repository) ListDatabases(ctx context.Context) (*models.DatabasesResult, error) {
	names, err := r.driver.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DatabasesResult{Databases: names}, nil
}

// ListTables 列出表或集合
func (r *Repository) ListTables(ctx context.Context) (*models.TablesResult, error) {
	names, err := r.driver.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return &models.TablesResult{Tables: names}, nil
}

// ListIndexes 列出表索引
func (r *Repository) ListIndexes(ctx context.Context, table string) ([]models.IndexInfo, error) {
	if err := r.validateTable(table); err != nil {
		return nil, err
	}
	return r.driver.ListIndexes(ctx, table)
}

// ListFields 列出表字段
func (r *Repository) ListFields(ctx context.Context, table string) ([]models.FieldInfo, error) {
	if err := r.validateTable(table); err != nil {
		return nil, err
	}
	return r.driver.ListFields(ctx, table)
}

// CreateTable 按契约建表（含索引）
func (r *Repository) CreateTable(ctx context.Context, contract *models.ContractSnapshot) error {
	table := database.TableNameFor(contract)
	if err := r.validateTable(table); err != nil {
		return err
	}
	return r.driver.CreateTable(ctx, models.CreateTable{
		Table:   table,
		Columns: database.ColumnsFor(r.dialect, contract.Fields),
		Indexes: contract.Indexes,
	})
}

// UpdateIndex 重建索引
func (r *Repository) UpdateIndex(ctx context.Context, table string, index models.IndexSpec) error {
	if err := r.validateTable(table); err != nil {
		return err
	}
	if index.Name == "" || len(index.Fields) == 0 {
		return fmt.Errorf("索引名称和字段不能为空")
	}
	return r.driver.UpdateIndex(ctx, table, index)
}

// RemoveIndex 删除索引
func (r *Repository) RemoveIndex(ctx context.Context, table, name string) error {
	if err := r.validateTable(table); err != nil {
		return err
	}
	return r.driver.RemoveIndex(ctx, table, name)
}

// validateTable 关系型方言的表名必须是合法标识符
func (r *Repository) validateTable(table string) error {
	if r.dialect.IsRelational() {
		return database.ValidateTableName(table)
	}
	if table == "" {
		return fmt.Errorf("集合名不能为空")
	}
	return nil
}
