package migration

import (
	"encoding/json"
	"reflect"
	"testing"

	"contractstore-service/service/database"
	"contractstore-service/service/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_IncrementalAddAndRelax(t *testing.T) {
	change := NewDetector().Detect(userV1(), userV2())
	artifact, err := NewGenerator(database.DialectPostgres).Generate(change)
	require.NoError(t, err)

	require.Len(t, artifact.Up, 2)
	add, ok := artifact.Up[0].(models.AddColumn)
	require.True(t, ok)
	assert.Equal(t, "age", add.Column.Name)
	assert.True(t, add.Column.Nullable)

	alter, ok := artifact.Up[1].(models.AlterColumn)
	require.True(t, ok)
	assert.Equal(t, "email", alter.Column.Name)
	assert.True(t, alter.Column.Nullable)

	require.Len(t, artifact.Down, 2)
	drop, ok := artifact.Down[0].(models.DropColumn)
	require.True(t, ok)
	assert.Equal(t, "age", drop.Column)

	revert, ok := artifact.Down[1].(models.AlterColumn)
	require.True(t, ok)
	assert.Equal(t, "email", revert.Column.Name)
	assert.False(t, revert.Column.Nullable)
}

func TestGenerate_NewTable(t *testing.T) {
	artifact, err := NewGenerator(database.DialectSQLite).Generate(NewDetector().Detect(nil, userV1()))
	require.NoError(t, err)

	require.Len(t, artifact.Up, 1)
	create := artifact.Up[0].(models.CreateTable)
	assert.Equal(t, "user", create.Table)
	assert.Len(t, create.Columns, 3)
	assert.True(t, create.Columns[0].Primary)
	assert.Equal(t, userV1().Indexes, create.Indexes)

	require.Len(t, artifact.Down, 1)
	assert.Equal(t, models.DropTable{Table: "user"}, artifact.Down[0])
}

func TestGenerate_DropRecreatesOriginal(t *testing.T) {
	c := userV1()
	artifact, err := NewGenerator(database.DialectPostgres).Generate(NewDetector().Detect(c, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ChangeKindDrop, artifact.Kind)
	assert.Equal(t, []models.SchemaOp{models.DropTable{Table: "user"}}, artifact.Up)

	require.Len(t, artifact.Down, 1)
	create := artifact.Down[0].(models.CreateTable)
	fields := make([]models.FieldSpec, 0, len(create.Columns))
	for _, col := range create.Columns {
		fields = append(fields, col.Field)
	}
	assert.Equal(t, c.Fields, fields)
	assert.Equal(t, c.Indexes, create.Indexes)
}

func TestGenerate_ModifiedIndexIsDropThenCreate(t *testing.T) {
	next := userV1()
	next.Indexes[0].Fields = []string{"name", "email"}

	artifact, err := NewGenerator(database.DialectMySQL).Generate(NewDetector().Detect(userV1(), next))
	require.NoError(t, err)

	assert.Equal(t, []models.SchemaOp{
		models.DropIndex{Table: "user", Name: "idx_user_name"},
		models.CreateIndex{Table: "user", Index: next.Indexes[0]},
	}, artifact.Up)
	assert.Equal(t, []models.SchemaOp{
		models.DropIndex{Table: "user", Name: "idx_user_name"},
		models.CreateIndex{Table: "user", Index: userV1().Indexes[0]},
	}, artifact.Down)
}

func TestGenerate_Deterministic(t *testing.T) {
	change := NewDetector().Detect(userV1(), userV2())
	g := NewGenerator(database.DialectPostgres)

	a, err := g.Generate(change)
	require.NoError(t, err)
	b, err := g.Generate(change)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
	assert.Contains(t, string(ja), `"op":"add_column"`)
}

func TestGenerate_RejectsEmptyChange(t *testing.T) {
	g := NewGenerator(database.DialectPostgres)
	_, err := g.Generate(nil)
	assert.Error(t, err)

	_, err = g.Generate(&models.DropSignal{TableName: "user"})
	assert.Error(t, err)
}

// schemaState 内存中的表结构，用于验证 up/down 可逆
type schemaState struct {
	columns map[string]models.ColumnDef
	indexes map[string]models.IndexSpec
}

func stateOf(d database.Dialect, c *models.ContractSnapshot) schemaState {
	s := schemaState{columns: map[string]models.ColumnDef{}, indexes: map[string]models.IndexSpec{}}
	for _, col := range database.ColumnsFor(d, c.Fields) {
		s.columns[col.Name] = col
	}
	for _, idx := range c.Indexes {
		s.indexes[idx.Name] = idx
	}
	return s
}

func (s schemaState) apply(ops []models.SchemaOp) {
	for _, op := range ops {
		switch o := op.(type) {
		case models.AddColumn:
			s.columns[o.Column.Name] = o.Column
		case models.DropColumn:
			delete(s.columns, o.Column)
		case models.AlterColumn:
			s.columns[o.Column.Name] = o.Column
		case models.CreateIndex:
			s.indexes[o.Index.Name] = o.Index
		case models.DropIndex:
			delete(s.indexes, o.Name)
		}
	}
}

func TestProperty_UpThenDownRestoresPreImage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	g := NewGenerator(database.DialectPostgres)

	properties.Property("up reaches next, down restores previous", prop.ForAll(
		func(a, b *models.ContractSnapshot) bool {
			change := NewDetector().Detect(a, b)
			if change == nil {
				return true
			}
			artifact, err := g.Generate(change)
			if err != nil {
				return false
			}

			state := stateOf(database.DialectPostgres, a)
			state.apply(artifact.Up)
			if !reflect.DeepEqual(state, stateOf(database.DialectPostgres, b)) {
				return false
			}
			state.apply(artifact.Down)
			return reflect.DeepEqual(state, stateOf(database.DialectPostgres, a))
		},
		genSnapshot(), genSnapshot(),
	))

	properties.TestingRun(t)
}
