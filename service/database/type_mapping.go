/*
 * @module service/database/type_mapping
 * @description 抽象字段类型到各方言物理列类型的映射，以及默认值字面量序列化
 * @architecture 分层架构 - 数据访问层（纯函数）
 * @rules repeated 字段无论标量类型都映射为列表编码列；未定义默认值不输出
 * @dependencies contractstore-service/service/models
 * @refs service/migration/generator.go, service/database/schema_service.go
 */

package database

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"contractstore-service/service/models"

	"github.com/lib/pq"
)

// NullLiteral 无法安全序列化的默认值使用的占位字面量
const NullLiteral = "NULL"

// baseTypeMap 通用映射
var baseTypeMap = map[models.FieldType]string{
	models.FieldTypeString:    "varchar",
	models.FieldTypeText:      "text",
	models.FieldTypeBool:      "boolean",
	models.FieldTypeBoolean:   "boolean",
	models.FieldTypeInt32:     "int",
	models.FieldTypeInt64:     "bigint",
	models.FieldTypeBigint:    "bigint",
	models.FieldTypeFloat:     "float",
	models.FieldTypeDouble:    "double",
	models.FieldTypeDecimal:   "decimal",
	models.FieldTypeDate:      "date",
	models.FieldTypeTime:      "time",
	models.FieldTypeDatetime:  "timestamp",
	models.FieldTypeTimestamp: "timestamp",
	models.FieldTypeJSON:      "json",
	models.FieldTypeJSONB:     "jsonb",
	models.FieldTypeUUID:      "uuid",
	models.FieldTypeBytes:     "bytes",
	models.FieldTypeEnum:      "varchar",
}

// dialectOverrides 方言差异
var dialectOverrides = map[Dialect]map[models.FieldType]string{
	DialectPostgres: {
		models.FieldTypeDouble:  "double precision",
		models.FieldTypeDecimal: "numeric",
		models.FieldTypeBytes:   "bytea",
	},
	DialectMySQL: {
		models.FieldTypeString:   "varchar(255)",
		models.FieldTypeEnum:     "varchar(255)",
		models.FieldTypeDatetime: "datetime",
		models.FieldTypeJSONB:    "json",
		models.FieldTypeUUID:     "char(36)",
		models.FieldTypeBytes:    "blob",
	},
	DialectSQLite: {
		models.FieldTypeDatetime: "datetime",
		models.FieldTypeJSONB:    "json",
		models.FieldTypeUUID:     "varchar(36)",
		models.FieldTypeBytes:    "blob",
	},
	DialectMongoDB: {
		models.FieldTypeString:    "string",
		models.FieldTypeText:      "string",
		models.FieldTypeEnum:      "string",
		models.FieldTypeUUID:      "string",
		models.FieldTypeBool:      "bool",
		models.FieldTypeBoolean:   "bool",
		models.FieldTypeInt32:     "int",
		models.FieldTypeInt64:     "long",
		models.FieldTypeBigint:    "long",
		models.FieldTypeFloat:     "double",
		models.FieldTypeDouble:    "double",
		models.FieldTypeDecimal:   "decimal",
		models.FieldTypeDate:      "date",
		models.FieldTypeTime:      "date",
		models.FieldTypeDatetime:  "date",
		models.FieldTypeTimestamp: "date",
		models.FieldTypeJSON:      "object",
		models.FieldTypeJSONB:     "object",
		models.FieldTypeBytes:     "binData",
	},
}

// ListColumnType 列表编码列类型
func ListColumnType(d Dialect) string {
	switch d {
	case DialectPostgres:
		return "jsonb"
	case DialectMySQL:
		return "json"
	case DialectMongoDB:
		return "array"
	default:
		return "text"
	}
}

// MapFieldType 映射字段到物理列类型
func MapFieldType(d Dialect, f models.FieldSpec) string {
	if f.Repeated {
		return ListColumnType(d)
	}
	if overrides, ok := dialectOverrides[d]; ok {
		if t, ok := overrides[f.ProtoType]; ok {
			return t
		}
	}
	if t, ok := baseTypeMap[f.ProtoType]; ok {
		return t
	}
	return baseTypeMap[models.FieldTypeString]
}

// SerializeDefault 将默认值序列化为目标方言的 SQL 字面量，ok=false 表示不输出默认值
func SerializeDefault(d Dialect, v interface{}) (literal string, ok bool) {
	if v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return quoteLiteral(d, val), true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), true
	case time.Time:
		return quoteLiteral(d, val.UTC().Format(time.RFC3339)), true
	case *big.Int, big.Int, *big.Float, big.Float:
		return NullLiteral, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.String:
		return quoteLiteral(d, rv.String()), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return NullLiteral, true
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}
		return SerializeDefault(d, rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return NullLiteral, true
		}
		return quoteLiteral(d, string(b)), true
	}

	return NullLiteral, true
}

// quoteLiteral 按方言转义字符串字面量
// PostgreSQL 交给 pq.QuoteLiteral（含反斜杠时输出 E'' 形式）；MySQL 默认模式下反斜杠是转义符，需要双写
func quoteLiteral(d Dialect, s string) string {
	switch d {
	case DialectPostgres:
		return strings.TrimSpace(pq.QuoteLiteral(s))
	case DialectMySQL:
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ColumnFor 由字段定义构建物理列
func ColumnFor(d Dialect, f models.FieldSpec) models.ColumnDef {
	col := models.ColumnDef{
		Name:     f.PropertyKey,
		Type:     MapFieldType(d, f),
		Nullable: f.Nullable,
		Unique:   f.Unique,
		Primary:  f.PropertyKey == "id" || f.PropertyKey == "_id",
		Field:    f,
	}
	if lit, ok := SerializeDefault(d, f.Default); ok {
		col.Default = &lit
	}
	if f.Link != nil && f.Link.Materialize && f.Link.TargetContract != "" {
		target := f.Link.TargetField
		if target == "" {
			target = "id"
		}
		col.References = &models.ForeignKey{
			Table:  ToSnakeCase(BaseName(f.Link.TargetContract)),
			Column: target,
		}
	}
	return col
}

// ColumnsFor 批量构建物理列，保持字段顺序
func ColumnsFor(d Dialect, fields []models.FieldSpec) []models.ColumnDef {
	cols := make([]models.ColumnDef, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, ColumnFor(d, f))
	}
	return cols
}

// describeColumn 用于日志输出
func describeColumn(c models.ColumnDef) string {
	return fmt.Sprintf("%s %s nullable=%t unique=%t", c.Name, c.Type, c.Nullable, c.Unique)
}
