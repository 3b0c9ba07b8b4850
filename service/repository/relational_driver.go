/*
 * @module service/repository/relational_driver
 * @description 关系型方言驱动（PostgreSQL / MySQL / SQLite），基于 GORM 执行查询与管理语句
 * @architecture 分层架构 - 数据访问层
 * @stateFlow Query -> WHERE 子句 -> GORM 链式调用 -> 行映射
 * @rules 标识符按方言加引号；过滤键排序后拼接保证语句稳定；游标在所有路径上关闭
 * @dependencies gorm.io/gorm, contractstore-service/service/database
 * @refs service/repository/repository.go
 */

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"

	"gorm.io/gorm"
)

var operatorSQL = map[string]string{
	models.OpGt:  ">",
	models.OpGte: ">=",
	models.OpLt:  "<",
	models.OpLte: "<=",
	models.OpNe:  "<>",
}

// RelationalDriver 关系型驱动
type RelationalDriver struct {
	db       *gorm.DB
	dialect  database.Dialect
	renderer *database.SchemaService
}

// NewRelationalDriver 创建关系型驱动
func NewRelationalDriver(db *gorm.DB, dialect database.Dialect) *RelationalDriver {
	return &RelationalDriver{
		db:       db,
		dialect:  dialect,
		renderer: database.NewSchemaService(dialect),
	}
}

// DB 底层连接
func (d *RelationalDriver) DB() *gorm.DB {
	return d.db
}

func (d *RelationalDriver) Dialect() database.Dialect {
	return d.dialect
}

func (d *RelationalDriver) quote(identifier string) string {
	return database.QuoteIdentifier(d.dialect, identifier)
}

// buildWhere 生成 WHERE 子句，返回空串表示无条件
func (d *RelationalDriver) buildWhere(filter models.Filter, search *models.Search) (string, []interface{}) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var args []interface{}
	for _, k := range keys {
		col := d.quote(k)
		switch v := filter[k].(type) {
		case nil:
			clauses = append(clauses, col+" IS NULL")
		case map[string]interface{}:
			c, a := d.operatorClauses(col, v)
			clauses = append(clauses, c...)
			args = append(args, a...)
		case models.Filter:
			c, a := d.operatorClauses(col, v)
			clauses = append(clauses, c...)
			args = append(args, a...)
		default:
			clauses = append(clauses, col+" = ?")
			args = append(args, v)
		}
	}

	if search != nil {
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", d.quote(search.Field)))
		args = append(args, "%"+strings.ToLower(search.Term)+"%")
	}

	return strings.Join(clauses, " AND "), args
}

func (d *RelationalDriver) operatorClauses(col string, cond map[string]interface{}) ([]string, []interface{}) {
	ops := make([]string, 0, len(cond))
	for op := range cond {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var clauses []string
	var args []interface{}
	for _, op := range ops {
		operand := cond[op]
		switch op {
		case models.OpIn:
			clauses = append(clauses, col+" IN ?")
			args = append(args, operand)
		case models.OpNin:
			clauses = append(clauses, col+" NOT IN ?")
			args = append(args, operand)
		default:
			sqlOp, ok := operatorSQL[op]
			if !ok {
				// 未知操作符按等值处理整个子条件
				clauses = append(clauses, col+" = ?")
				args = append(args, encodeValue(operand))
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s %s ?", col, sqlOp))
			args = append(args, operand)
		}
	}
	return clauses, args
}

func (d *RelationalDriver) scoped(ctx context.Context, table string, q *models.Query) *gorm.DB {
	tx := d.db.WithContext(ctx).Table(table)
	var where string
	var args []interface{}
	if q != nil {
		where, args = d.buildWhere(q.Filter, q.Search)
	}
	if where != "" {
		tx = tx.Where(where, args...)
	}
	return tx
}

func (d *RelationalDriver) FindOne(ctx context.Context, table string, filter models.Filter) (models.Row, error) {
	rows, err := d.Find(ctx, table, &models.Query{Filter: filter, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return rows[0], nil
}

func (d *RelationalDriver) Find(ctx context.Context, table string, q *models.Query) ([]models.Row, error) {
	tx := d.scoped(ctx, table, q)
	if len(q.Fields) > 0 {
		cols := make([]string, 0, len(q.Fields))
		for _, f := range q.Fields {
			cols = append(cols, d.quote(f))
		}
		tx = tx.Select(strings.Join(cols, ", "))
	}
	if q.SortBy != "" {
		dir := models.SortAsc
		if q.SortDir == models.SortDesc {
			dir = models.SortDesc
		}
		tx = tx.Order(d.quote(q.SortBy) + " " + dir)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var results []map[string]interface{}
	if err := tx.Find(&results).Error; err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, models.Row(r))
	}
	return rows, nil
}

func (d *RelationalDriver) Count(ctx context.Context, table string, q *models.Query) (int64, error) {
	var count int64
	err := d.scoped(ctx, table, q).Count(&count).Error
	return count, err
}

func (d *RelationalDriver) Insert(ctx context.Context, table string, record models.Record) (models.Row, error) {
	values := encodeRecord(record)
	if err := d.db.WithContext(ctx).Table(table).Create(values).Error; err != nil {
		return nil, err
	}

	row := make(models.Row, len(record))
	for k, v := range record {
		row[k] = v
	}
	return row, nil
}

func (d *RelationalDriver) Update(ctx context.Context, table string, filter models.Filter, values models.Record) (int64, error) {
	where, args := d.buildWhere(filter, nil)
	if where == "" {
		return 0, gorm.ErrMissingWhereClause
	}
	result := d.db.WithContext(ctx).Table(table).Where(where, args...).Updates(encodeRecord(values))
	return result.RowsAffected, result.Error
}

func (d *RelationalDriver) Delete(ctx context.Context, table string, filter models.Filter) (int64, error) {
	where, args := d.buildWhere(filter, nil)
	if where == "" {
		return 0, gorm.ErrMissingWhereClause
	}
	result := d.db.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", d.quote(table), where), args...)
	return result.RowsAffected, result.Error
}

func (d *RelationalDriver) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *RelationalDriver) Close(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListDatabases 列出数据库，SQLite 为单文件库不支持
func (d *RelationalDriver) ListDatabases(ctx context.Context) ([]string, error) {
	var stmt string
	switch d.dialect {
	case database.DialectPostgres:
		stmt = "SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname"
	case database.DialectMySQL:
		stmt = "SHOW DATABASES"
	default:
		return nil, apperrors.NewUnsupported("ListDatabases", d.dialect.String())
	}
	return d.queryStrings(ctx, stmt)
}

// ListTables 列出当前库中的表
func (d *RelationalDriver) ListTables(ctx context.Context) ([]string, error) {
	var stmt string
	switch d.dialect {
	case database.DialectPostgres:
		stmt = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name"
	case database.DialectMySQL:
		stmt = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name"
	case database.DialectSQLite:
		stmt = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	default:
		return nil, apperrors.NewUnsupported("ListTables", d.dialect.String())
	}
	return d.queryStrings(ctx, stmt)
}

// queryStrings 执行单列查询，游标在所有路径上关闭
func (d *RelationalDriver) queryStrings(ctx context.Context, stmt string) ([]string, error) {
	rows, err := d.db.WithContext(ctx).Raw(stmt).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}

func (d *RelationalDriver) ListIndexes(ctx context.Context, table string) ([]models.IndexInfo, error) {
	indexes, err := d.db.WithContext(ctx).Migrator().GetIndexes(table)
	if err != nil {
		return nil, err
	}

	out := make([]models.IndexInfo, 0, len(indexes))
	for _, idx := range indexes {
		unique, _ := idx.Unique()
		out = append(out, models.IndexInfo{
			Name:    idx.Name(),
			Columns: idx.Columns(),
			Unique:  unique,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *RelationalDriver) ListFields(ctx context.Context, table string) ([]models.FieldInfo, error) {
	columns, err := d.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, err
	}

	out := make([]models.FieldInfo, 0, len(columns))
	for _, c := range columns {
		nullable, _ := c.Nullable()
		primary, _ := c.PrimaryKey()
		out = append(out, models.FieldInfo{
			Name:     c.Name(),
			Type:     strings.ToLower(c.DatabaseTypeName()),
			Nullable: nullable,
			Primary:  primary,
		})
	}
	return out, nil
}

func (d *RelationalDriver) CreateTable(ctx context.Context, op models.CreateTable) error {
	return d.execOps(ctx, op)
}

// UpdateIndex 删除同名索引后按新定义重建
func (d *RelationalDriver) UpdateIndex(ctx context.Context, table string, index models.IndexSpec) error {
	return d.execOps(ctx,
		models.DropIndex{Table: table, Name: index.Name},
		models.CreateIndex{Table: table, Index: index},
	)
}

func (d *RelationalDriver) RemoveIndex(ctx context.Context, table, name string) error {
	return d.execOps(ctx, models.DropIndex{Table: table, Name: name})
}

func (d *RelationalDriver) execOps(ctx context.Context, ops ...models.SchemaOp) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			stmts, err := d.renderer.RenderOp(op)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("执行 %s 失败: %w", op.Kind(), err)
				}
			}
		}
		return nil
	})
}

// encodeRecord 列表与对象值编码为 JSON 列
func encodeRecord(record models.Record) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, []byte, time.Time, *time.Time:
		return v
	case models.JSONB, models.JSONBList:
		return v
	case map[string]interface{}:
		return models.JSONB(val)
	case []interface{}:
		return models.JSONBList(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		list := make(models.JSONBList, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			list = append(list, rv.Index(i).Interface())
		}
		return list
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			obj := make(models.JSONB, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				obj[iter.Key().String()] = iter.Value().Interface()
			}
			return obj
		}
	}
	return v
}
