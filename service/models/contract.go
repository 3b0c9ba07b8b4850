/*
 * @module service/models/contract
 * @description 契约快照模型：字段、索引、关联与契约选项的声明式描述
 * @architecture 分层架构 - 数据模型层
 * @stateFlow 外部注册中心产出快照 -> 变更检测/仓储只读使用
 * @rules 快照在核心层中只读；属性键和索引名在契约内唯一
 * @dependencies encoding/json
 * @refs service/migration, service/repository
 */

package models

import (
	"fmt"
)

// FieldType 抽象字段类型
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeText      FieldType = "text"
	FieldTypeBool      FieldType = "bool"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeInt32     FieldType = "int32"
	FieldTypeInt64     FieldType = "int64"
	FieldTypeBigint    FieldType = "bigint"
	FieldTypeFloat     FieldType = "float"
	FieldTypeDouble    FieldType = "double"
	FieldTypeDecimal   FieldType = "decimal"
	FieldTypeDate      FieldType = "date"
	FieldTypeTime      FieldType = "time"
	FieldTypeDatetime  FieldType = "datetime"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeJSON      FieldType = "json"
	FieldTypeJSONB     FieldType = "jsonb"
	FieldTypeUUID      FieldType = "uuid"
	FieldTypeBytes     FieldType = "bytes"
	FieldTypeEnum      FieldType = "enum"
)

// KnownFieldTypes 所有受支持的抽象类型
var KnownFieldTypes = []FieldType{
	FieldTypeString, FieldTypeText, FieldTypeBool, FieldTypeBoolean, FieldTypeInt32,
	FieldTypeInt64, FieldTypeBigint, FieldTypeFloat, FieldTypeDouble, FieldTypeDecimal,
	FieldTypeDate, FieldTypeTime, FieldTypeDatetime, FieldTypeTimestamp, FieldTypeJSON,
	FieldTypeJSONB, FieldTypeUUID, FieldTypeBytes, FieldTypeEnum,
}

// IsKnown 检查类型是否在受支持的集合中
func (t FieldType) IsKnown() bool {
	for _, k := range KnownFieldTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ValidationRule 字段校验规则描述，顺序有意义
type ValidationRule struct {
	Name string        `json:"name" yaml:"name"`
	Args []interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// Cardinality 关联基数
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one-to-one"
	CardinalityManyToOne  Cardinality = "many-to-one"
	CardinalityOneToMany  Cardinality = "one-to-many"
	CardinalityManyToMany Cardinality = "many-to-many"
)

// LinkSpec 字段关联描述
type LinkSpec struct {
	TargetContract string      `json:"targetContract" yaml:"targetContract"`
	TargetField    string      `json:"targetField" yaml:"targetField"`
	Cardinality    Cardinality `json:"cardinality" yaml:"cardinality"`
	Materialize    bool        `json:"materialize" yaml:"materialize"` // 是否生成外键约束
}

// FieldSpec 字段定义
type FieldSpec struct {
	PropertyKey string           `json:"propertyKey" yaml:"propertyKey"`
	ProtoType   FieldType        `json:"protoType" yaml:"protoType"`
	Repeated    bool             `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Nullable    bool             `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique      bool             `json:"unique,omitempty" yaml:"unique,omitempty"`
	Default     interface{}      `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"` // nil 表示未定义
	Validations []ValidationRule `json:"validations,omitempty" yaml:"validations,omitempty"`
	Indexed     bool             `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	Link        *LinkSpec        `json:"link,omitempty" yaml:"link,omitempty"`
}

// IndexOptions 索引选项，参与变更比较
type IndexOptions struct {
	Unique     bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	Spatial    bool   `json:"spatial,omitempty" yaml:"spatial,omitempty"`
	Fulltext   bool   `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`
	Parser     string `json:"parser,omitempty" yaml:"parser,omitempty"`
	Where      string `json:"where,omitempty" yaml:"where,omitempty"`
	Sparse     bool   `json:"sparse,omitempty" yaml:"sparse,omitempty"`
	Background bool   `json:"background,omitempty" yaml:"background,omitempty"`
}

// IndexSpec 索引定义，Fields 顺序有意义
type IndexSpec struct {
	Name    string       `json:"name" yaml:"name"`
	Fields  []string     `json:"fields" yaml:"fields"`
	Options IndexOptions `json:"options" yaml:"options"`
}

// ContractOptions 契约级选项
type ContractOptions struct {
	SchemaName     string `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	ModuleContract bool   `json:"moduleContract,omitempty" yaml:"moduleContract,omitempty"`
	SoftDelete     bool   `json:"softDelete,omitempty" yaml:"softDelete,omitempty"`
	Timestamps     bool   `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	Attribution    bool   `json:"attribution,omitempty" yaml:"attribution,omitempty"`
}

// ContractSnapshot 某一版本的契约快照
type ContractSnapshot struct {
	ContractName   string          `json:"contractName" yaml:"contractName"`
	ControllerName string          `json:"controllerName,omitempty" yaml:"controllerName,omitempty"`
	Fields         []FieldSpec     `json:"fields" yaml:"fields"`
	Indexes        []IndexSpec     `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Options        ContractOptions `json:"options" yaml:"options"`
}

// Validate 校验快照的唯一性约束
func (c *ContractSnapshot) Validate() error {
	if c.ContractName == "" {
		return fmt.Errorf("契约名称不能为空")
	}

	keys := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.PropertyKey == "" {
			return fmt.Errorf("契约 %s 存在空的属性键", c.ContractName)
		}
		if keys[f.PropertyKey] {
			return fmt.Errorf("契约 %s 属性键重复: %s", c.ContractName, f.PropertyKey)
		}
		if !f.ProtoType.IsKnown() {
			return fmt.Errorf("契约 %s 字段 %s 类型不受支持: %s", c.ContractName, f.PropertyKey, f.ProtoType)
		}
		keys[f.PropertyKey] = true
	}

	names := make(map[string]bool, len(c.Indexes))
	for _, idx := range c.Indexes {
		if names[idx.Name] {
			return fmt.Errorf("契约 %s 索引名重复: %s", c.ContractName, idx.Name)
		}
		names[idx.Name] = true
	}

	return nil
}

// Field 按属性键查找字段
func (c *ContractSnapshot) Field(key string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.PropertyKey == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}
