/*
 * @module service/database/schema_service
 * @description 表结构服务，将迁移产物中的结构操作渲染为各关系型方言的 DDL 语句
 * @architecture 分层架构 - 数据访问层
 * @stateFlow 结构操作 -> 方言渲染 -> DDL 文本（交由外部执行器执行）
 * @rules 仅渲染不执行；删除类语句带 IF EXISTS；方言不支持的操作返回 UNSUPPORTED_DIALECT_OPERATION
 * @dependencies github.com/lib/pq, contractstore-service/service/models
 * @refs service/migration/writer.go
 */

package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"

	"github.com/lib/pq"
)

// SchemaService 表结构 DDL 渲染服务
type SchemaService struct {
	dialect Dialect
}

// NewSchemaService 创建表结构服务实例
func NewSchemaService(dialect Dialect) *SchemaService {
	return &SchemaService{dialect: dialect}
}

// Dialect 当前方言
func (s *SchemaService) Dialect() Dialect {
	return s.dialect
}

// RenderedMigration 渲染后的迁移语句
type RenderedMigration struct {
	Dialect Dialect  `json:"dialect"`
	Up      []string `json:"up"`
	Down    []string `json:"down"`
}

// RenderArtifact 渲染整个迁移产物，方言不支持的操作以注释行保留
func (s *SchemaService) RenderArtifact(artifact *models.MigrationArtifact) (*RenderedMigration, error) {
	if !s.dialect.IsRelational() {
		return nil, apperrors.NewUnsupported("RenderArtifact", s.dialect.String())
	}

	up, err := s.renderOps(artifact.Up)
	if err != nil {
		return nil, err
	}
	down, err := s.renderOps(artifact.Down)
	if err != nil {
		return nil, err
	}

	return &RenderedMigration{Dialect: s.dialect, Up: up, Down: down}, nil
}

func (s *SchemaService) renderOps(ops []models.SchemaOp) ([]string, error) {
	statements := make([]string, 0, len(ops))
	for _, op := range ops {
		stmts, err := s.RenderOp(op)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnsupportedOperation) {
				statements = append(statements, fmt.Sprintf("-- unsupported on %s: %s %s", s.dialect, op.Kind(), op.TableName()))
				continue
			}
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	return statements, nil
}

// RenderOp 渲染单个结构操作
func (s *SchemaService) RenderOp(op models.SchemaOp) ([]string, error) {
	switch o := op.(type) {
	case models.CreateTable:
		return s.createTable(o), nil
	case models.DropTable:
		return []string{fmt.Sprintf("DROP TABLE IF EXISTS %s", s.quoteIdentifier(o.Table))}, nil
	case models.AddColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.quoteIdentifier(o.Table), s.columnDefinition(o.Column))}, nil
	case models.DropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.quoteIdentifier(o.Table), s.quoteIdentifier(o.Column))}, nil
	case models.AlterColumn:
		return s.alterColumn(o)
	case models.CreateIndex:
		return []string{s.createIndex(o.Table, o.Index)}, nil
	case models.DropIndex:
		return []string{s.dropIndex(o.Table, o.Name)}, nil
	default:
		return nil, fmt.Errorf("不支持的结构操作类型: %T", op)
	}
}

// createTable 建表语句，索引紧随其后
func (s *SchemaService) createTable(o models.CreateTable) []string {
	defs := make([]string, 0, len(o.Columns))
	for _, col := range o.Columns {
		slog.Debug("SchemaService.createTable - 渲染列", "table", o.Table, "column", describeColumn(col))
		defs = append(defs, "    "+s.columnDefinition(col))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", s.quoteIdentifier(o.Table), strings.Join(defs, ",\n"))}
	for _, idx := range o.Indexes {
		stmts = append(stmts, s.createIndex(o.Table, idx))
	}
	return stmts
}

// columnDefinition 列定义片段
func (s *SchemaService) columnDefinition(col models.ColumnDef) string {
	var b strings.Builder
	b.WriteString(s.quoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(col.Type)
	if col.Primary {
		b.WriteString(" PRIMARY KEY")
	} else {
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.Default)
	}
	if col.References != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", s.quoteIdentifier(col.References.Table), s.quoteIdentifier(col.References.Column))
	}
	return b.String()
}

// alterColumn 修改列，SQLite 不支持修改列定义
func (s *SchemaService) alterColumn(o models.AlterColumn) ([]string, error) {
	table := s.quoteIdentifier(o.Table)
	col := s.quoteIdentifier(o.Column.Name)

	switch s.dialect {
	case DialectPostgres:
		parts := []string{fmt.Sprintf("ALTER COLUMN %s TYPE %s", col, o.Column.Type)}
		if o.Column.Nullable {
			parts = append(parts, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
		} else {
			parts = append(parts, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
		}
		if o.Column.Default != nil {
			parts = append(parts, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", col, *o.Column.Default))
		} else {
			parts = append(parts, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", col))
		}
		return []string{fmt.Sprintf("ALTER TABLE %s %s", table, strings.Join(parts, ", "))}, nil
	case DialectMySQL:
		return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, s.columnDefinition(o.Column))}, nil
	default:
		return nil, apperrors.NewUnsupported("AlterColumn", s.dialect.String())
	}
}

// createIndex 建索引语句
func (s *SchemaService) createIndex(table string, idx models.IndexSpec) string {
	cols := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		cols = append(cols, s.quoteIdentifier(f))
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	switch {
	case idx.Options.Unique:
		b.WriteString("UNIQUE ")
	case s.dialect == DialectMySQL && idx.Options.Fulltext:
		b.WriteString("FULLTEXT ")
	case s.dialect == DialectMySQL && idx.Options.Spatial:
		b.WriteString("SPATIAL ")
	}
	b.WriteString("INDEX ")
	if s.dialect != DialectMySQL {
		b.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&b, "%s ON %s", s.quoteIdentifier(idx.Name), s.quoteIdentifier(table))
	if s.dialect == DialectPostgres && idx.Options.Spatial {
		b.WriteString(" USING GIST")
	}
	fmt.Fprintf(&b, " (%s)", strings.Join(cols, ", "))
	if s.dialect == DialectMySQL && idx.Options.Fulltext && idx.Options.Parser != "" {
		fmt.Fprintf(&b, " WITH PARSER %s", idx.Options.Parser)
	}
	if s.dialect != DialectMySQL && idx.Options.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", idx.Options.Where)
	}
	return b.String()
}

// dropIndex 删除索引语句
func (s *SchemaService) dropIndex(table, name string) string {
	if s.dialect == DialectMySQL {
		return fmt.Sprintf("DROP INDEX %s ON %s", s.quoteIdentifier(name), s.quoteIdentifier(table))
	}
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", s.quoteIdentifier(name))
}

// quoteIdentifier 给标识符添加引号
func (s *SchemaService) quoteIdentifier(identifier string) string {
	return QuoteIdentifier(s.dialect, identifier)
}

// QuoteIdentifier 按方言给标识符加引号
func QuoteIdentifier(d Dialect, identifier string) string {
	switch d {
	case DialectPostgres:
		return pq.QuoteIdentifier(identifier)
	case DialectMySQL:
		return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
	}
}

// ValidateTableName 验证表名
func ValidateTableName(tableName string) error {
	if len(tableName) == 0 {
		return fmt.Errorf("表名不能为空")
	}

	if len(tableName) > 63 {
		return fmt.Errorf("表名长度不能超过63个字符")
	}

	// 检查是否以字母开头
	if !((tableName[0] >= 'a' && tableName[0] <= 'z') || (tableName[0] >= 'A' && tableName[0] <= 'Z')) {
		return fmt.Errorf("表名必须以字母开头")
	}

	// 检查是否只包含字母、数字和下划线
	for i := 1; i < len(tableName); i++ {
		c := tableName[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return fmt.Errorf("表名只能包含字母、数字和下划线")
		}
	}

	return nil
}
