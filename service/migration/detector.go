/*
 * @module service/migration/detector
 * @description 契约结构变更检测，对比两个契约版本的字段与索引，产出变更集或删除信号
 * @architecture 领域服务层 - 纯函数
 * @stateFlow (previous, next) -> ChangeSet | DropSignal | nil
 * @rules 模块契约永不迁移；无变化返回 nil 而不是错误；遍历按快照切片顺序，输出确定
 * @dependencies contractstore-service/service/models, contractstore-service/service/database
 * @refs service/migration/generator.go
 */

package migration

import (
	"log/slog"
	"reflect"

	"contractstore-service/service/database"
	"contractstore-service/service/models"
)

// Detector 契约变更检测器
type Detector struct{}

// NewDetector 创建变更检测器
func NewDetector() *Detector {
	return &Detector{}
}

// Detect 比较两个契约快照
// 返回 nil 表示无需迁移
func (d *Detector) Detect(previous, next *models.ContractSnapshot) models.Change {
	if next == nil {
		if previous == nil || previous.Options.ModuleContract {
			return nil
		}
		slog.Debug("Detector.Detect - 契约已删除", "contract", previous.ContractName)
		return &models.DropSignal{
			TableName: database.TableNameFor(previous),
			Previous:  previous,
		}
	}

	if next.Options.ModuleContract {
		return nil
	}

	if previous == nil {
		return &models.ChangeSet{
			Kind:         models.ChangeKindNewTable,
			ContractName: next.ContractName,
			TableName:    database.TableNameFor(next),
			HasChanges:   true,
			AddedFields:  append([]models.FieldSpec(nil), next.Fields...),
			AddedIndexes: append([]models.IndexSpec(nil), next.Indexes...),
		}
	}

	cs := &models.ChangeSet{
		Kind:         models.ChangeKindIncremental,
		ContractName: next.ContractName,
		TableName:    database.TableNameFor(next),
	}
	diffFields(cs, previous.Fields, next.Fields)
	diffIndexes(cs, previous.Indexes, next.Indexes)

	cs.HasChanges = !cs.Empty()
	if !cs.HasChanges {
		return nil
	}

	slog.Debug("Detector.Detect - 检测到结构变更",
		"contract", next.ContractName,
		"added_fields", len(cs.AddedFields),
		"removed_fields", len(cs.RemovedFields),
		"modified_fields", len(cs.ModifiedFields),
		"added_indexes", len(cs.AddedIndexes),
		"removed_indexes", len(cs.RemovedIndexes),
		"modified_indexes", len(cs.ModifiedIndexes))
	return cs
}

func diffFields(cs *models.ChangeSet, prev, next []models.FieldSpec) {
	prevByKey := make(map[string]models.FieldSpec, len(prev))
	for _, f := range prev {
		prevByKey[f.PropertyKey] = f
	}
	nextByKey := make(map[string]struct{}, len(next))

	for _, f := range next {
		nextByKey[f.PropertyKey] = struct{}{}
		old, ok := prevByKey[f.PropertyKey]
		if !ok {
			cs.AddedFields = append(cs.AddedFields, f)
			continue
		}
		if !FieldsEqual(old, f) {
			cs.ModifiedFields = append(cs.ModifiedFields, models.FieldChange{Old: old, New: f})
		}
	}
	for _, f := range prev {
		if _, ok := nextByKey[f.PropertyKey]; !ok {
			cs.RemovedFields = append(cs.RemovedFields, f)
		}
	}
}

func diffIndexes(cs *models.ChangeSet, prev, next []models.IndexSpec) {
	prevByName := make(map[string]models.IndexSpec, len(prev))
	for _, idx := range prev {
		prevByName[idx.Name] = idx
	}
	nextByName := make(map[string]struct{}, len(next))

	for _, idx := range next {
		nextByName[idx.Name] = struct{}{}
		old, ok := prevByName[idx.Name]
		if !ok {
			cs.AddedIndexes = append(cs.AddedIndexes, idx)
			continue
		}
		if !IndexesEqual(old, idx) {
			cs.ModifiedIndexes = append(cs.ModifiedIndexes, models.IndexChange{Old: old, New: idx})
		}
	}
	for _, idx := range prev {
		if _, ok := nextByName[idx.Name]; !ok {
			cs.RemovedIndexes = append(cs.RemovedIndexes, idx)
		}
	}
}

// FieldsEqual 字段定义是否等价，nil 与空校验列表视为相同
func FieldsEqual(a, b models.FieldSpec) bool {
	if a.PropertyKey != b.PropertyKey ||
		a.ProtoType != b.ProtoType ||
		a.Repeated != b.Repeated ||
		a.Nullable != b.Nullable ||
		a.Unique != b.Unique ||
		a.Indexed != b.Indexed {
		return false
	}
	if !reflect.DeepEqual(a.Default, b.Default) {
		return false
	}
	if len(a.Validations) != len(b.Validations) {
		return false
	}
	for i := range a.Validations {
		if !reflect.DeepEqual(a.Validations[i], b.Validations[i]) {
			return false
		}
	}
	return reflect.DeepEqual(a.Link, b.Link)
}

// IndexesEqual 索引是否等价，字段顺序敏感
func IndexesEqual(a, b models.IndexSpec) bool {
	if a.Name != b.Name || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return a.Options == b.Options
}
