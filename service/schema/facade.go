/*
 * @module service/schema/facade
 * @description 单实体门面：在仓储之上叠加软删除、时间戳、归属与解析器后处理策略
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 请求 -> 策略注入(deleted/updatedAt/createdBy) -> Repository -> 实体映射 -> 解析器 -> 结果信封
 * @rules 软删除开启时所有读写都附加 deleted=false；通用更新不能修改 deleted；
 *        归属标识转换失败时仅告警并省略字段，不使整个操作失败
 * @dependencies contractstore-service/service/repository, github.com/spf13/cast
 * @refs service/repository/repository.go
 */

package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"
	"contractstore-service/service/repository"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// 策略字段名
const (
	FieldDeleted   = "deleted"
	FieldDeletedAt = "deletedAt"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
)

// Options 门面策略开关，三者相互独立
type Options struct {
	SoftDelete  bool
	Timestamps  bool
	Attribution bool
}

// FromEntity 物理行到模型记录的映射
type FromEntity func(row models.Row) models.Record

// QueryOptions 读操作选项
type QueryOptions struct {
	Resolvers []string // 按顺序应用，未注册的名称跳过
	Fields    []string
}

// Facade 单实体门面
type Facade struct {
	repo       *repository.Repository
	entity     string
	opts       Options
	fromEntity FromEntity
	resolvers  *ResolverRegistry
	now        func() time.Time
}

// NewFacade 创建门面，fromEntity 为空时使用原样拷贝
func NewFacade(repo *repository.Repository, entity string, opts Options, fromEntity FromEntity, resolvers *ResolverRegistry) *Facade {
	if fromEntity == nil {
		fromEntity = EntityMapper(nil)
	}
	return &Facade{
		repo:       repo,
		entity:     entity,
		opts:       opts,
		fromEntity: fromEntity,
		resolvers:  resolvers,
		now:        time.Now,
	}
}

// NewContractFacade 按契约选项创建门面
func NewContractFacade(repo *repository.Repository, contract *models.ContractSnapshot, resolvers *ResolverRegistry) *Facade {
	return NewFacade(repo, database.BaseName(contract.ContractName), Options{
		SoftDelete:  contract.Options.SoftDelete,
		Timestamps:  contract.Options.Timestamps,
		Attribution: contract.Options.Attribution,
	}, EntityMapper(contract), resolvers)
}

// Entity 实体名
func (f *Facade) Entity() string {
	return f.entity
}

// EntityMapper 默认映射：文档库 _id 转为字符串 id，布尔字段统一为 bool
func EntityMapper(contract *models.ContractSnapshot) FromEntity {
	var boolFields []string
	if contract != nil {
		for _, field := range contract.Fields {
			if field.ProtoType == models.FieldTypeBool || field.ProtoType == models.FieldTypeBoolean {
				boolFields = append(boolFields, field.PropertyKey)
			}
		}
	}

	return func(row models.Row) models.Record {
		record := make(models.Record, len(row))
		for k, v := range row {
			record[k] = v
		}
		if oid, ok := record["_id"].(bson.ObjectID); ok {
			record["id"] = oid.Hex()
			delete(record, "_id")
		}
		for _, key := range boolFields {
			v, ok := record[key]
			if !ok || v == nil {
				continue
			}
			if b, err := cast.ToBoolE(v); err == nil {
				record[key] = b
			}
		}
		return record
	}
}

func (f *Facade) pipeline(ctx context.Context, rows []models.Row, opts *QueryOptions) ([]models.Record, error) {
	var names []string
	if opts != nil {
		names = opts.Resolvers
	}

	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		record, err := f.resolvers.Apply(ctx, names, f.fromEntity(row))
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *Facade) findOptions(opts *QueryOptions) *repository.FindOptions {
	if opts == nil || len(opts.Fields) == 0 {
		return nil
	}
	return &repository.FindOptions{Fields: opts.Fields}
}

// GetAll 分页列表，软删除开启时强制 deleted=false
// reqCtx 保留给调用层的归属扩展，列表查询本身不使用
func (f *Facade) GetAll(ctx context.Context, params map[string]interface{}, reqCtx *models.RequestContext, opts *QueryOptions) (*models.RecordPage, error) {
	query := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	if f.opts.SoftDelete {
		query[FieldDeleted] = false
	}
	return f.findAll(ctx, query, opts)
}

func (f *Facade) findAll(ctx context.Context, query map[string]interface{}, opts *QueryOptions) (*models.RecordPage, error) {
	page, err := f.repo.FindAll(ctx, f.entity, query, f.findOptions(opts))
	if err != nil {
		return nil, err
	}

	data, err := f.pipeline(ctx, page.Data, opts)
	if err != nil {
		return nil, err
	}
	return &models.RecordPage{Data: data, Count: page.Count, Pagination: page.Pagination}, nil
}

// GetIn 按标识集合查询，标量视为单元素集合
func (f *Facade) GetIn(ctx context.Context, ids interface{}, opts *QueryOptions) (*models.RecordPage, error) {
	list := toList(ids)

	limit := len(list)
	if limit > repository.MaxLimit {
		limit = repository.MaxLimit
	}
	query := map[string]interface{}{
		"id":                   map[string]interface{}{models.OpIn: list},
		repository.ParamLimit: limit,
	}
	if f.opts.SoftDelete {
		query[FieldDeleted] = false
	}
	return f.findAll(ctx, query, opts)
}

func toList(ids interface{}) []interface{} {
	if ids == nil {
		return []interface{}{}
	}
	rv := reflect.ValueOf(ids)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{ids}
	}
	// ObjectID 本身是字节数组，按标量处理
	if _, ok := ids.(bson.ObjectID); ok {
		return []interface{}{ids}
	}
	list := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		list = append(list, rv.Index(i).Interface())
	}
	return list
}

func (f *Facade) idFilter(id interface{}) models.Filter {
	filter := models.Filter{"id": id}
	if f.opts.SoftDelete {
		filter[FieldDeleted] = false
	}
	return filter
}

// GetByID 按标识查询单条记录，不存在或已软删除时返回 NO_VALID_RESULT
func (f *Facade) GetByID(ctx context.Context, id interface{}, opts *QueryOptions) (*models.Single, error) {
	row, err := f.repo.FindBy(ctx, f.entity, f.idFilter(id))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.CategoryQuery, apperrors.CodeNoValidResult,
			fmt.Sprintf("%s %v 不存在", f.entity, id), err)
	}
	if err != nil {
		return nil, err
	}

	records, err := f.pipeline(ctx, []models.Row{row}, opts)
	if err != nil {
		return nil, err
	}
	return &models.Single{Data: records[0]}, nil
}

// Insert 插入记录，失败时返回驱动错误信息
func (f *Facade) Insert(ctx context.Context, data models.Record) (models.Record, error) {
	values := cloneRecord(data)
	if f.opts.SoftDelete {
		if _, ok := values[FieldDeleted]; !ok {
			values[FieldDeleted] = false
		}
	}
	if f.opts.Timestamps {
		now := f.now()
		if _, ok := values[FieldCreatedAt]; !ok {
			values[FieldCreatedAt] = now
		}
		values[FieldUpdatedAt] = now
	}

	result, err := f.repo.Insert(ctx, f.entity, values)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apperrors.New(apperrors.CategoryDriver, apperrors.CodeOperationDegraded, result.Message)
	}
	return f.fromEntity(result.Data), nil
}

// Update 按标识更新，deleted 字段不可通过通用更新修改
func (f *Facade) Update(ctx context.Context, id interface{}, data models.Record) (models.MutationResult, error) {
	values := cloneRecord(data)
	delete(values, FieldDeleted)
	if f.opts.Timestamps {
		values[FieldUpdatedAt] = f.now()
	}
	if len(values) == 0 {
		return models.MutationResult{Success: false, Affected: 0}, nil
	}

	result, err := f.repo.Update(ctx, f.entity, f.idFilter(id), values)
	if err != nil {
		return models.MutationResult{}, err
	}
	return models.MutationResult{Success: result.Affected > 0, Affected: result.Affected}, nil
}

// Delete 软删除开启时标记 deleted/deletedAt，否则物理删除
func (f *Facade) Delete(ctx context.Context, id interface{}) (models.MutationResult, error) {
	if !f.opts.SoftDelete {
		return f.repo.Delete(ctx, f.entity, models.Filter{"id": id})
	}

	result, err := f.repo.Update(ctx, f.entity, f.idFilter(id), models.Record{
		FieldDeleted:   true,
		FieldDeletedAt: f.now(),
	})
	if err != nil {
		return models.MutationResult{}, err
	}
	return models.MutationResult{Success: result.Affected > 0, Affected: result.Affected}, nil
}

// ExtraData 归属字段注入，creating 为 true 时同时设置 createdBy
func (f *Facade) ExtraData(ctx context.Context, reqCtx *models.RequestContext, data models.Record, creating bool) models.Record {
	values := cloneRecord(data)
	if !f.opts.Attribution || reqCtx == nil || reqCtx.UserID == "" {
		return values
	}

	id, err := f.repo.CoerceID(reqCtx.UserID)
	if err != nil {
		slog.Warn("Facade.ExtraData - 归属标识转换失败，忽略归属字段",
			"entity", f.entity,
			"code", apperrors.CodeAttributionCoercion,
			"user_id", reqCtx.UserID,
			"error", err)
		return values
	}

	values[FieldUpdatedBy] = id.Value()
	if creating {
		values[FieldCreatedBy] = id.Value()
	}
	return values
}

func cloneRecord(data models.Record) models.Record {
	out := make(models.Record, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}
