/*
 * @module service/models/changeset
 * @description 契约变更集与删除信号，作为检测器输出、生成器输入
 * @architecture 封闭的和类型 - Change 仅由本包实现
 * @rules HasChanges 为 false 的变更集不生成迁移
 * @refs service/migration/detector.go, service/migration/generator.go
 */

package models

// ChangeKind 变更类别
type ChangeKind string

const (
	ChangeKindNewTable    ChangeKind = "new_table"
	ChangeKindIncremental ChangeKind = "incremental"
	ChangeKindDrop        ChangeKind = "drop"
)

// Change 变更检测结果：*ChangeSet 或 *DropSignal
type Change interface {
	ChangeKind() ChangeKind
	Table() string
	isChange()
}

// FieldChange 字段修改前后镜像
type FieldChange struct {
	Old FieldSpec `json:"old"`
	New FieldSpec `json:"new"`
}

// IndexChange 索引修改前后镜像
type IndexChange struct {
	Old IndexSpec `json:"old"`
	New IndexSpec `json:"new"`
}

// ChangeSet 两个契约版本之间的结构差异，每次检测新建，不持久化
type ChangeSet struct {
	Kind            ChangeKind    `json:"kind"`
	ContractName    string        `json:"contractName"`
	TableName       string        `json:"tableName"`
	HasChanges      bool          `json:"hasChanges"`
	AddedFields     []FieldSpec   `json:"addedFields"`
	RemovedFields   []FieldSpec   `json:"removedFields"`
	ModifiedFields  []FieldChange `json:"modifiedFields"`
	AddedIndexes    []IndexSpec   `json:"addedIndexes"`
	RemovedIndexes  []IndexSpec   `json:"removedIndexes"`
	ModifiedIndexes []IndexChange `json:"modifiedIndexes"`
}

func (c *ChangeSet) ChangeKind() ChangeKind { return c.Kind }
func (c *ChangeSet) Table() string          { return c.TableName }
func (c *ChangeSet) isChange()              {}

// Empty 六个列表是否全部为空
func (c *ChangeSet) Empty() bool {
	return len(c.AddedFields) == 0 && len(c.RemovedFields) == 0 && len(c.ModifiedFields) == 0 &&
		len(c.AddedIndexes) == 0 && len(c.RemovedIndexes) == 0 && len(c.ModifiedIndexes) == 0
}

// DropSignal 契约被删除，保留完整的原始快照以便生成可逆的重建操作
type DropSignal struct {
	TableName string            `json:"tableName"`
	Previous  *ContractSnapshot `json:"previous"`
}

func (d *DropSignal) ChangeKind() ChangeKind { return ChangeKindDrop }
func (d *DropSignal) Table() string          { return d.TableName }
func (d *DropSignal) isChange()              {}
