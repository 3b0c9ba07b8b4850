/*
 * @module service/repository/driver
 * @description 方言驱动接口，关系型与文档型驱动各自实现
 * @architecture 策略模式 - 按方言选择驱动
 * @rules 驱动只负责执行，不做参数校验与结果包装
 * @refs service/repository/relational_driver.go, service/repository/document_driver.go
 */

package repository

import (
	"context"
	"errors"

	"contractstore-service/service/database"
	"contractstore-service/service/models"
)

// errNoRows 驱动层未找到记录
var errNoRows = errors.New("no rows")

// DataDriver 方言驱动的数据操作
type DataDriver interface {
	Dialect() database.Dialect
	// FindOne 未找到时返回 errNoRows
	FindOne(ctx context.Context, table string, filter models.Filter) (models.Row, error)
	Find(ctx context.Context, table string, q *models.Query) ([]models.Row, error)
	Count(ctx context.Context, table string, q *models.Query) (int64, error)
	Insert(ctx context.Context, table string, record models.Record) (models.Row, error)
	Update(ctx context.Context, table string, filter models.Filter, values models.Record) (int64, error)
	Delete(ctx context.Context, table string, filter models.Filter) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// AdminDriver 方言驱动的管理操作，不支持的方言返回 UNSUPPORTED_DIALECT_OPERATION
type AdminDriver interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context) ([]string, error)
	ListIndexes(ctx context.Context, table string) ([]models.IndexInfo, error)
	ListFields(ctx context.Context, table string) ([]models.FieldInfo, error)
	CreateTable(ctx context.Context, op models.CreateTable) error
	UpdateIndex(ctx context.Context, table string, index models.IndexSpec) error
	RemoveIndex(ctx context.Context, table, name string) error
}

// Driver 完整驱动
type Driver interface {
	DataDriver
	AdminDriver
}
