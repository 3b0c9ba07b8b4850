/*
 * @module service/models/schema_op
 * @description 迁移产物模型：可逆的结构操作列表（up/down）
 * @architecture 分层架构 - 数据模型层
 * @stateFlow 变更集 -> 迁移生成器 -> 迁移产物 -> 外部写入器
 * @rules 产物生成后不可修改；操作集合封闭，只允许下列七种操作
 * @dependencies encoding/json
 */

package models

import (
	"encoding/json"
)

// OpKind 结构操作类型
type OpKind string

const (
	OpCreateTable OpKind = "create_table"
	OpDropTable   OpKind = "drop_table"
	OpAddColumn   OpKind = "add_column"
	OpDropColumn  OpKind = "drop_column"
	OpAlterColumn OpKind = "alter_column"
	OpCreateIndex OpKind = "create_index"
	OpDropIndex   OpKind = "drop_index"
)

// SchemaOp 结构操作
type SchemaOp interface {
	Kind() OpKind
	TableName() string
}

// ColumnDef 物理列定义，Field 保留完整的字段镜像以便逆向操作
type ColumnDef struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Nullable   bool        `json:"nullable"`
	Unique     bool        `json:"unique"`
	Primary    bool        `json:"primary,omitempty"`
	Default    *string     `json:"default,omitempty"`
	References *ForeignKey `json:"references,omitempty"`
	Field      FieldSpec   `json:"field"`
}

// ForeignKey 外键约束
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type CreateTable struct {
	Table   string      `json:"table"`
	Columns []ColumnDef `json:"columns"`
	Indexes []IndexSpec `json:"indexes,omitempty"`
}

type DropTable struct {
	Table string `json:"table"`
}

type AddColumn struct {
	Table  string    `json:"table"`
	Column ColumnDef `json:"column"`
}

type DropColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// AlterColumn 将列修改为 Column 描述的目标定义
type AlterColumn struct {
	Table  string    `json:"table"`
	Column ColumnDef `json:"column"`
}

type CreateIndex struct {
	Table string    `json:"table"`
	Index IndexSpec `json:"index"`
}

type DropIndex struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

func (o CreateTable) Kind() OpKind { return OpCreateTable }
func (o DropTable) Kind() OpKind   { return OpDropTable }
func (o AddColumn) Kind() OpKind   { return OpAddColumn }
func (o DropColumn) Kind() OpKind  { return OpDropColumn }
func (o AlterColumn) Kind() OpKind { return OpAlterColumn }
func (o CreateIndex) Kind() OpKind { return OpCreateIndex }
func (o DropIndex) Kind() OpKind   { return OpDropIndex }

func (o CreateTable) TableName() string { return o.Table }
func (o DropTable) TableName() string   { return o.Table }
func (o AddColumn) TableName() string   { return o.Table }
func (o DropColumn) TableName() string  { return o.Table }
func (o AlterColumn) TableName() string { return o.Table }
func (o CreateIndex) TableName() string { return o.Table }
func (o DropIndex) TableName() string   { return o.Table }

// MigrationArtifact 迁移产物
type MigrationArtifact struct {
	ContractName string     `json:"contractName"`
	TableName    string     `json:"tableName"`
	Kind         ChangeKind `json:"kind"`
	Up           []SchemaOp `json:"-"`
	Down         []SchemaOp `json:"-"`
}

type opEnvelope struct {
	Op   OpKind   `json:"op"`
	Spec SchemaOp `json:"spec"`
}

func envelopes(ops []SchemaOp) []opEnvelope {
	out := make([]opEnvelope, 0, len(ops))
	for _, op := range ops {
		out = append(out, opEnvelope{Op: op.Kind(), Spec: op})
	}
	return out
}

// MarshalJSON 为每个操作附加类型标签
func (a MigrationArtifact) MarshalJSON() ([]byte, error) {
	type plain MigrationArtifact
	return json.Marshal(struct {
		plain
		Up   []opEnvelope `json:"up"`
		Down []opEnvelope `json:"down"`
	}{
		plain: plain(a),
		Up:    envelopes(a.Up),
		Down:  envelopes(a.Down),
	})
}
