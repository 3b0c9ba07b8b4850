/*
 * @module service/repository/repository
 * @description 方言无关仓储：统一的 CRUD、过滤、分页语义，驱动错误在此边界转换为类型化失败
 * @architecture 分层架构 - 数据访问层
 * @stateFlow 实体名 -> 注册表查找 -> 查询解析 -> 驱动执行 -> 结果信封 / 类型化失败
 * @rules 写操作失败不返回 error 而返回失败形态；仅实体未注册与方言不支持作为 error 抛出；
 *        count 与 data 使用同一个查询对象；审计实体自身的查询不再发出事件
 * @dependencies contractstore-service/service/models, github.com/google/uuid
 * @refs service/schema/facade.go
 */

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"

	"github.com/google/uuid"
)

// EventSink 查询事件旁路
type EventSink interface {
	Emit(ctx context.Context, event models.QueryEvent)
}

// Options 仓储选项
type Options struct {
	Debug bool
	Sink  EventSink
}

// FindOptions 列表查询选项
type FindOptions struct {
	Fields []string // 投影列
}

// Repository 方言无关仓储
type Repository struct {
	driver   Driver
	dialect  database.Dialect
	entities *EntityRegistry
	debug    bool
	sink     EventSink
}

// NewRepository 创建仓储
func NewRepository(driver Driver, entities *EntityRegistry, opts Options) *Repository {
	return &Repository{
		driver:   driver,
		dialect:  driver.Dialect(),
		entities: entities,
		debug:    opts.Debug,
		sink:     opts.Sink,
	}
}

// Dialect 当前方言
func (r *Repository) Dialect() database.Dialect {
	return r.dialect
}

// Entities 实体注册表
func (r *Repository) Entities() *EntityRegistry {
	return r.entities
}

// IDFieldName 主键字段名
func (r *Repository) IDFieldName() string {
	return IDFieldName(r.dialect)
}

// CoerceID 转换为当前方言的标识
func (r *Repository) CoerceID(v interface{}) (Identifier, error) {
	return CoerceID(r.dialect, v)
}

// QueryBuilder 过滤条件归一化
func (r *Repository) QueryBuilder(filter models.Filter) models.Filter {
	return BuildFilter(r.dialect, filter)
}

// Ping 检查连接
func (r *Repository) Ping(ctx context.Context) error {
	return r.driver.Ping(ctx)
}

// Close 释放连接
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) logDebug(msg string, args ...interface{}) {
	if r.debug {
		slog.Debug(msg, args...)
	}
}

// FindBy 按条件查找单条记录
// 未找到返回 NOT_FOUND，驱动失败返回 OPERATION_DEGRADED
func (r *Repository) FindBy(ctx context.Context, entity string, criteria models.Filter) (models.Row, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return nil, err
	}

	row, err := r.driver.FindOne(ctx, shape.Table, r.QueryBuilder(criteria))
	if errors.Is(err, errNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		r.logDebug("Repository.FindBy - 查询失败", "entity", entity, "error", err)
		return nil, apperrors.NewDegraded("FindBy", err)
	}
	return r.normalizeRow(shape, row), nil
}

// FindAll 分页列表查询
func (r *Repository) FindAll(ctx context.Context, entity string, params map[string]interface{}, opts *FindOptions) (*models.Page, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	q, pagination := ParseQuery(r.dialect, params)
	if opts != nil {
		q.Fields = opts.Fields
	}

	page, err := r.findAll(ctx, shape, q, pagination)
	r.emit(ctx, shape, "FindAll", start, page, err, pagination)
	if err != nil {
		r.logDebug("Repository.FindAll - 查询失败", "entity", entity, "error", err)
		return nil, apperrors.NewDegraded("FindAll", err)
	}
	return page, nil
}

func (r *Repository) findAll(ctx context.Context, shape *EntityShape, q *models.Query, pagination models.Pagination) (*models.Page, error) {
	count, err := r.driver.Count(ctx, shape.Table, q)
	if err != nil {
		return nil, err
	}
	rows, err := r.driver.Find(ctx, shape.Table, q)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i] = r.normalizeRow(shape, rows[i])
	}
	return &models.Page{Data: rows, Count: count, Pagination: pagination}, nil
}

func (r *Repository) emit(ctx context.Context, shape *EntityShape, op string, start time.Time, page *models.Page, err error, pagination models.Pagination) {
	if r.sink == nil || shape.Entity == models.AuditEntity || shape.Table == (models.AuditLog{}).TableName() {
		return
	}

	var count int64
	if page != nil {
		count = page.Count
	}
	r.sink.Emit(ctx, models.QueryEvent{
		ID:        uuid.NewString(),
		Entity:    shape.Entity,
		Operation: op,
		Duration:  time.Since(start),
		Count:     count,
		Success:   err == nil,
		Metadata: map[string]interface{}{
			"table":   shape.Table,
			"limit":   pagination.Limit,
			"offset":  pagination.Offset,
			"sortBy":  pagination.SortBy,
			"sortDir": pagination.SortDir,
			"filters": pagination.Filters,
		},
		Timestamp: start,
	})
}

// Insert 插入记录，失败时返回 Success=false 与驱动信息
func (r *Repository) Insert(ctx context.Context, entity string, record models.Record) (models.InsertResult, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return models.InsertResult{}, err
	}

	values := make(models.Record, len(record)+1)
	for k, v := range record {
		values[k] = v
	}
	if r.dialect.IsRelational() && needsGeneratedID(shape, values) {
		values["id"] = uuid.NewString()
	}

	row, err := r.driver.Insert(ctx, shape.Table, values)
	if err != nil {
		r.logDebug("Repository.Insert - 插入失败", "entity", entity, "error", err)
		return models.InsertResult{Success: false, Message: err.Error()}, nil
	}
	return models.InsertResult{Success: true, Data: row}, nil
}

// needsGeneratedID 契约主键为字符串类且调用方未提供时生成 uuid
func needsGeneratedID(shape *EntityShape, values models.Record) bool {
	if _, ok := values["id"]; ok || shape.Contract == nil {
		return false
	}
	f, ok := shape.Contract.Field("id")
	if !ok {
		return false
	}
	return f.ProtoType == models.FieldTypeUUID || f.ProtoType == models.FieldTypeString
}

// Update 按条件更新，失败时影响行数为 0
func (r *Repository) Update(ctx context.Context, entity string, filter models.Filter, values models.Record) (models.MutationResult, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return models.MutationResult{}, err
	}

	affected, err := r.driver.Update(ctx, shape.Table, r.QueryBuilder(filter), values)
	if err != nil {
		r.logDebug("Repository.Update - 更新失败", "entity", entity, "error", err)
		return models.MutationResult{Success: false, Affected: 0}, nil
	}
	return models.MutationResult{Success: affected > 0, Affected: affected}, nil
}

// UpdateOne 先查询再按主键更新第一条匹配记录
// 读与写之间不加锁，并发更新同一记录时后写者生效
func (r *Repository) UpdateOne(ctx context.Context, entity string, filter models.Filter, values models.Record) (models.MutationResult, error) {
	row, err := r.FindBy(ctx, entity, filter)
	if err != nil {
		if errors.Is(err, apperrors.ErrEntityNotRegistered) {
			return models.MutationResult{}, err
		}
		return models.MutationResult{Success: false, Affected: 0}, nil
	}

	idField := r.IDFieldName()
	return r.Update(ctx, entity, models.Filter{idField: row[idField]}, values)
}

// UpdateByID 按主键更新
func (r *Repository) UpdateByID(ctx context.Context, entity string, id interface{}, values models.Record) (models.MutationResult, error) {
	return r.Update(ctx, entity, models.Filter{r.IDFieldName(): id}, values)
}

// Delete 物理删除
func (r *Repository) Delete(ctx context.Context, entity string, filter models.Filter) (models.MutationResult, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return models.MutationResult{}, err
	}

	affected, err := r.driver.Delete(ctx, shape.Table, r.QueryBuilder(filter))
	if err != nil {
		r.logDebug("Repository.Delete - 删除失败", "entity", entity, "error", err)
		return models.MutationResult{Success: false, Affected: 0}, nil
	}
	return models.MutationResult{Success: affected > 0, Affected: affected}, nil
}

// Exists 是否存在匹配记录，驱动失败视为不存在
func (r *Repository) Exists(ctx context.Context, entity string, filter models.Filter) (bool, error) {
	shape, err := r.entities.Lookup(entity)
	if err != nil {
		return false, err
	}

	count, err := r.driver.Count(ctx, shape.Table, &models.Query{Filter: r.QueryBuilder(filter)})
	if err != nil {
		r.logDebug("Repository.Exists - 查询失败", "entity", entity, "error", err)
		return false, nil
	}
	return count > 0, nil
}

// normalizeRow 关系型方言中列表编码字段解码回数组
func (r *Repository) normalizeRow(shape *EntityShape, row models.Row) models.Row {
	if r.dialect.IsDocument() {
		return row
	}
	for _, key := range shape.repeatedFields() {
		var raw []byte
		switch v := row[key].(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			continue
		}
		var list []interface{}
		if err := json.Unmarshal(raw, &list); err == nil {
			row[key] = list
		}
	}
	return row
}
