/*
 * @module service/repository/document_driver
 * @description 文档型方言驱动（MongoDB），使用原生驱动的查询与管理 API
 * @architecture 分层架构 - 数据访问层
 * @stateFlow Query -> BSON 过滤 -> Find/Count -> 文档映射
 * @rules 搜索使用大小写不敏感正则；游标在所有路径上关闭；主键为 _id
 * @dependencies go.mongodb.org/mongo-driver/v2
 * @refs service/repository/repository.go
 */

package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"contractstore-service/service/database"
	"contractstore-service/service/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DocumentDriver MongoDB 驱动
type DocumentDriver struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewDocumentDriver 创建文档型驱动
func NewDocumentDriver(client *mongo.Client, databaseName string) *DocumentDriver {
	return &DocumentDriver{
		client: client,
		db:     client.Database(databaseName),
	}
}

func (d *DocumentDriver) Dialect() database.Dialect {
	return database.DialectMongoDB
}

// documentFilter 转换为 BSON 过滤条件
func documentFilter(filter models.Filter, search *models.Search) bson.M {
	out := bson.M{}
	for k, v := range filter {
		switch cond := v.(type) {
		case models.Filter:
			out[k] = bson.M(cond)
		case map[string]interface{}:
			out[k] = bson.M(cond)
		default:
			out[k] = v
		}
	}
	if search != nil {
		regex := bson.M{
			"$regex":   regexp.QuoteMeta(search.Term),
			"$options": "i",
		}
		// 同一字段已有过滤条件时与搜索条件取交集
		if existing, ok := out[search.Field]; ok {
			delete(out, search.Field)
			out["$and"] = bson.A{
				bson.M{search.Field: existing},
				bson.M{search.Field: regex},
			}
		} else {
			out[search.Field] = regex
		}
	}
	return out
}

// documentSort 排序规则
func documentSort(q *models.Query) bson.D {
	dir := 1
	if q.SortDir == models.SortDesc {
		dir = -1
	}
	return bson.D{{Key: q.SortBy, Value: dir}}
}

func (d *DocumentDriver) FindOne(ctx context.Context, table string, filter models.Filter) (models.Row, error) {
	var doc bson.M
	err := d.db.Collection(table).FindOne(ctx, documentFilter(filter, nil)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNoRows
	}
	if err != nil {
		return nil, err
	}
	return models.Row(doc), nil
}

func (d *DocumentDriver) Find(ctx context.Context, table string, q *models.Query) ([]models.Row, error) {
	findOptions := options.Find()
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		findOptions.SetSkip(int64(q.Offset))
	}
	if q.SortBy != "" {
		findOptions.SetSort(documentSort(q))
	}
	if len(q.Fields) > 0 {
		projection := bson.D{}
		for _, f := range q.Fields {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		findOptions.SetProjection(projection)
	}

	cursor, err := d.db.Collection(table).Find(ctx, documentFilter(q.Filter, q.Search), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, models.Row(doc))
	}
	return rows, nil
}

func (d *DocumentDriver) Count(ctx context.Context, table string, q *models.Query) (int64, error) {
	return d.db.Collection(table).CountDocuments(ctx, documentFilter(q.Filter, q.Search))
}

func (d *DocumentDriver) Insert(ctx context.Context, table string, record models.Record) (models.Row, error) {
	doc := make(bson.M, len(record)+1)
	for k, v := range record {
		doc[k] = v
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = bson.NewObjectID()
	}

	if _, err := d.db.Collection(table).InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return models.Row(doc), nil
}

func (d *DocumentDriver) Update(ctx context.Context, table string, filter models.Filter, values models.Record) (int64, error) {
	result, err := d.db.Collection(table).UpdateMany(ctx, documentFilter(filter, nil), bson.M{"$set": bson.M(values)})
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (d *DocumentDriver) Delete(ctx context.Context, table string, filter models.Filter) (int64, error) {
	result, err := d.db.Collection(table).DeleteMany(ctx, documentFilter(filter, nil))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (d *DocumentDriver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

func (d *DocumentDriver) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DocumentDriver) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := d.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (d *DocumentDriver) ListTables(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (d *DocumentDriver) ListIndexes(ctx context.Context, table string) ([]models.IndexInfo, error) {
	cursor, err := d.db.Collection(table).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.IndexInfo{}
	for cursor.Next(ctx) {
		var indexDoc bson.M
		if err := cursor.Decode(&indexDoc); err != nil {
			return nil, err
		}
		out = append(out, indexInfoFromDocument(indexDoc))
	}
	return out, cursor.Err()
}

// indexInfoFromDocument 解析 listIndexes 返回的索引文档
func indexInfoFromDocument(indexDoc bson.M) models.IndexInfo {
	info := models.IndexInfo{}
	info.Name, _ = indexDoc["name"].(string)

	// key 可能是 bson.D 或 bson.M
	switch keyValue := indexDoc["key"].(type) {
	case bson.D:
		for _, elem := range keyValue {
			info.Columns = append(info.Columns, elem.Key)
		}
	case bson.M:
		for field := range keyValue {
			info.Columns = append(info.Columns, field)
		}
		sort.Strings(info.Columns)
	}

	if unique, ok := indexDoc["unique"].(bool); ok {
		info.Unique = unique
	}
	return info
}

// ListFields 以一条样本文档推断字段
func (d *DocumentDriver) ListFields(ctx context.Context, table string) ([]models.FieldInfo, error) {
	var sample bson.M
	err := d.db.Collection(table).FindOne(ctx, bson.D{}).Decode(&sample)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.FieldInfo{{Name: "_id", Type: "objectId", Primary: true}}, nil
	}
	if err != nil {
		return nil, err
	}
	return fieldsFromDocument(sample), nil
}

func fieldsFromDocument(doc bson.M) []models.FieldInfo {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.FieldInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.FieldInfo{
			Name:     k,
			Type:     bsonTypeName(doc[k]),
			Nullable: doc[k] == nil,
			Primary:  k == "_id",
		})
	}
	return out
}

func bsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32:
		return "int"
	case int64:
		return "long"
	case float64:
		return "double"
	case bson.DateTime:
		return "date"
	case bson.A:
		return "array"
	case bson.M, bson.D:
		return "object"
	case bson.Binary:
		return "binData"
	case bson.Decimal128:
		return "decimal"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// CreateTable 创建集合及其索引
func (d *DocumentDriver) CreateTable(ctx context.Context, op models.CreateTable) error {
	if err := d.db.CreateCollection(ctx, op.Table); err != nil {
		return fmt.Errorf("创建集合 %s 失败: %w", op.Table, err)
	}
	if len(op.Indexes) == 0 {
		return nil
	}

	indexModels := make([]mongo.IndexModel, 0, len(op.Indexes))
	for _, idx := range op.Indexes {
		indexModels = append(indexModels, indexModel(idx))
	}
	if _, err := d.db.Collection(op.Table).Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("创建集合 %s 的索引失败: %w", op.Table, err)
	}
	return nil
}

// indexModel 索引定义转换，fulltext 映射为 text 索引
func indexModel(idx models.IndexSpec) mongo.IndexModel {
	keys := bson.D{}
	for _, field := range idx.Fields {
		var direction interface{} = 1
		switch {
		case idx.Options.Fulltext:
			direction = "text"
		case idx.Options.Spatial:
			direction = "2dsphere"
		}
		keys = append(keys, bson.E{Key: field, Value: direction})
	}

	indexOpts := options.Index().SetName(idx.Name)
	if idx.Options.Unique {
		indexOpts.SetUnique(true)
	}
	if idx.Options.Sparse {
		indexOpts.SetSparse(true)
	}
	return mongo.IndexModel{Keys: keys, Options: indexOpts}
}

func (d *DocumentDriver) UpdateIndex(ctx context.Context, table string, index models.IndexSpec) error {
	indexes := d.db.Collection(table).Indexes()
	if err := indexes.DropOne(ctx, index.Name); err != nil {
		var cmdErr mongo.CommandError
		// IndexNotFound 视为无需删除
		if !errors.As(err, &cmdErr) || cmdErr.Code != 27 {
			return err
		}
	}
	_, err := indexes.CreateOne(ctx, indexModel(index))
	return err
}

func (d *DocumentDriver) RemoveIndex(ctx context.Context, table, name string) error {
	return d.db.Collection(table).Indexes().DropOne(ctx, name)
}
