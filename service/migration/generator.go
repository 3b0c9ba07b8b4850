/*
 * @module service/migration/generator
 * @description 迁移生成器，将变更集或删除信号转换为有序、可逆的结构操作列表
 * @architecture 领域服务层 - 纯函数
 * @stateFlow Change -> MigrationArtifact{Up, Down}
 * @rules 同一变更集多次生成结果一致，不读取时钟；down 与 up 按相同类别顺序给出互补操作
 * @dependencies contractstore-service/service/database, contractstore-service/service/models
 * @refs service/migration/detector.go, service/migration/writer.go
 */

package migration

import (
	"fmt"

	"contractstore-service/service/database"
	"contractstore-service/service/models"
)

// Generator 迁移生成器，列类型按目标方言映射
type Generator struct {
	dialect database.Dialect
}

// NewGenerator 创建迁移生成器
func NewGenerator(dialect database.Dialect) *Generator {
	return &Generator{dialect: dialect}
}

// Generate 生成迁移产物
func (g *Generator) Generate(change models.Change) (*models.MigrationArtifact, error) {
	switch c := change.(type) {
	case *models.ChangeSet:
		if c == nil {
			return nil, fmt.Errorf("变更集为空")
		}
		if c.Kind == models.ChangeKindNewTable {
			return g.newTable(c), nil
		}
		return g.incremental(c), nil
	case *models.DropSignal:
		if c == nil || c.Previous == nil {
			return nil, fmt.Errorf("删除信号缺少原始契约快照")
		}
		return g.dropTable(c), nil
	case nil:
		return nil, fmt.Errorf("没有需要生成的变更")
	default:
		return nil, fmt.Errorf("未知的变更类型: %T", change)
	}
}

func (g *Generator) newTable(cs *models.ChangeSet) *models.MigrationArtifact {
	return &models.MigrationArtifact{
		ContractName: cs.ContractName,
		TableName:    cs.TableName,
		Kind:         models.ChangeKindNewTable,
		Up:           []models.SchemaOp{g.createTable(cs.TableName, cs.AddedFields, cs.AddedIndexes)},
		Down:         []models.SchemaOp{models.DropTable{Table: cs.TableName}},
	}
}

func (g *Generator) dropTable(sig *models.DropSignal) *models.MigrationArtifact {
	prev := sig.Previous
	return &models.MigrationArtifact{
		ContractName: prev.ContractName,
		TableName:    sig.TableName,
		Kind:         models.ChangeKindDrop,
		Up:           []models.SchemaOp{models.DropTable{Table: sig.TableName}},
		Down:         []models.SchemaOp{g.createTable(sig.TableName, prev.Fields, prev.Indexes)},
	}
}

func (g *Generator) createTable(table string, fields []models.FieldSpec, indexes []models.IndexSpec) models.CreateTable {
	return models.CreateTable{
		Table:   table,
		Columns: database.ColumnsFor(g.dialect, fields),
		Indexes: append([]models.IndexSpec(nil), indexes...),
	}
}

// incremental 固定顺序：加列、删列、改列、建索引、删索引、改索引
func (g *Generator) incremental(cs *models.ChangeSet) *models.MigrationArtifact {
	table := cs.TableName
	var up, down []models.SchemaOp

	for _, f := range cs.AddedFields {
		up = append(up, models.AddColumn{Table: table, Column: database.ColumnFor(g.dialect, f)})
		down = append(down, models.DropColumn{Table: table, Column: f.PropertyKey})
	}
	for _, f := range cs.RemovedFields {
		up = append(up, models.DropColumn{Table: table, Column: f.PropertyKey})
		down = append(down, models.AddColumn{Table: table, Column: database.ColumnFor(g.dialect, f)})
	}
	for _, m := range cs.ModifiedFields {
		up = append(up, models.AlterColumn{Table: table, Column: database.ColumnFor(g.dialect, m.New)})
		down = append(down, models.AlterColumn{Table: table, Column: database.ColumnFor(g.dialect, m.Old)})
	}
	for _, idx := range cs.AddedIndexes {
		up = append(up, models.CreateIndex{Table: table, Index: idx})
		down = append(down, models.DropIndex{Table: table, Name: idx.Name})
	}
	for _, idx := range cs.RemovedIndexes {
		up = append(up, models.DropIndex{Table: table, Name: idx.Name})
		down = append(down, models.CreateIndex{Table: table, Index: idx})
	}
	for _, m := range cs.ModifiedIndexes {
		up = append(up,
			models.DropIndex{Table: table, Name: m.Old.Name},
			models.CreateIndex{Table: table, Index: m.New},
		)
		down = append(down,
			models.DropIndex{Table: table, Name: m.New.Name},
			models.CreateIndex{Table: table, Index: m.Old},
		)
	}

	return &models.MigrationArtifact{
		ContractName: cs.ContractName,
		TableName:    table,
		Kind:         models.ChangeKindIncremental,
		Up:           up,
		Down:         down,
	}
}
