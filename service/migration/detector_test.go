package migration

import (
	"reflect"
	"testing"

	"contractstore-service/service/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userV1() *models.ContractSnapshot {
	return &models.ContractSnapshot{
		ContractName: "UserContract",
		Fields: []models.FieldSpec{
			{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
			{PropertyKey: "name", ProtoType: models.FieldTypeString},
			{PropertyKey: "email", ProtoType: models.FieldTypeString, Unique: true},
		},
		Indexes: []models.IndexSpec{
			{Name: "idx_user_name", Fields: []string{"name"}},
		},
	}
}

func userV2() *models.ContractSnapshot {
	c := userV1()
	c.Fields = []models.FieldSpec{
		{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
		{PropertyKey: "name", ProtoType: models.FieldTypeString},
		{PropertyKey: "email", ProtoType: models.FieldTypeString, Unique: true, Nullable: true},
		{PropertyKey: "age", ProtoType: models.FieldTypeInt32, Nullable: true},
	}
	return c
}

func TestDetect_AddedAndModifiedFields(t *testing.T) {
	change := NewDetector().Detect(userV1(), userV2())
	require.NotNil(t, change)

	cs, ok := change.(*models.ChangeSet)
	require.True(t, ok)
	assert.Equal(t, models.ChangeKindIncremental, cs.Kind)
	assert.Equal(t, "user", cs.TableName)
	assert.True(t, cs.HasChanges)

	require.Len(t, cs.AddedFields, 1)
	assert.Equal(t, "age", cs.AddedFields[0].PropertyKey)
	require.Len(t, cs.ModifiedFields, 1)
	assert.Equal(t, "email", cs.ModifiedFields[0].Old.PropertyKey)
	assert.False(t, cs.ModifiedFields[0].Old.Nullable)
	assert.True(t, cs.ModifiedFields[0].New.Nullable)
	assert.Empty(t, cs.RemovedFields)
	assert.Empty(t, cs.AddedIndexes)
}

func TestDetect_ModuleContractNeverMigrates(t *testing.T) {
	c := userV1()
	c.Options.ModuleContract = true

	assert.Nil(t, NewDetector().Detect(nil, c))
	assert.Nil(t, NewDetector().Detect(c, nil))
	assert.Nil(t, NewDetector().Detect(nil, nil))
}

func TestDetect_NewTable(t *testing.T) {
	c := userV1()
	change := NewDetector().Detect(nil, c)
	require.NotNil(t, change)

	cs := change.(*models.ChangeSet)
	assert.Equal(t, models.ChangeKindNewTable, cs.Kind)
	assert.True(t, cs.HasChanges)
	assert.Equal(t, c.Fields, cs.AddedFields)
	assert.Equal(t, c.Indexes, cs.AddedIndexes)
}

func TestDetect_DropSignalKeepsSnapshot(t *testing.T) {
	c := userV1()
	change := NewDetector().Detect(c, nil)
	require.NotNil(t, change)

	sig, ok := change.(*models.DropSignal)
	require.True(t, ok)
	assert.Equal(t, models.ChangeKindDrop, sig.ChangeKind())
	assert.Equal(t, "user", sig.Table())
	assert.Same(t, c, sig.Previous)
}

func TestDetect_NoChangeReturnsNil(t *testing.T) {
	assert.Nil(t, NewDetector().Detect(userV1(), userV1()))

	// 字段顺序不同不算变更
	reordered := userV1()
	reordered.Fields[0], reordered.Fields[2] = reordered.Fields[2], reordered.Fields[0]
	assert.Nil(t, NewDetector().Detect(userV1(), reordered))
}

func TestDetect_IndexChanges(t *testing.T) {
	next := userV1()
	next.Indexes = []models.IndexSpec{
		{Name: "idx_user_name", Fields: []string{"name", "email"}},
		{Name: "idx_user_email", Fields: []string{"email"}, Options: models.IndexOptions{Unique: true}},
	}

	cs := NewDetector().Detect(userV1(), next).(*models.ChangeSet)
	require.Len(t, cs.ModifiedIndexes, 1)
	assert.Equal(t, []string{"name"}, cs.ModifiedIndexes[0].Old.Fields)
	require.Len(t, cs.AddedIndexes, 1)
	assert.Equal(t, "idx_user_email", cs.AddedIndexes[0].Name)

	next.Indexes = nil
	cs = NewDetector().Detect(userV1(), next).(*models.ChangeSet)
	require.Len(t, cs.RemovedIndexes, 1)
}

func TestDetect_DefaultAndValidationChanges(t *testing.T) {
	next := userV1()
	next.Fields[1].Default = "anonymous"
	cs := NewDetector().Detect(userV1(), next).(*models.ChangeSet)
	assert.Len(t, cs.ModifiedFields, 1)

	next = userV1()
	next.Fields[1].Validations = []models.ValidationRule{{Name: "maxLength", Args: []interface{}{64}}}
	cs = NewDetector().Detect(userV1(), next).(*models.ChangeSet)
	assert.Len(t, cs.ModifiedFields, 1)

	// nil 与空校验列表等价
	next = userV1()
	next.Fields[1].Validations = []models.ValidationRule{}
	assert.Nil(t, NewDetector().Detect(userV1(), next))
}

var fieldUniverse = []models.FieldSpec{
	{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
	{PropertyKey: "name", ProtoType: models.FieldTypeString},
	{PropertyKey: "email", ProtoType: models.FieldTypeString},
	{PropertyKey: "age", ProtoType: models.FieldTypeInt32},
	{PropertyKey: "tags", ProtoType: models.FieldTypeText},
}

var indexUniverse = []models.IndexSpec{
	{Name: "idx_name", Fields: []string{"name"}},
	{Name: "idx_email_age", Fields: []string{"email", "age"}},
	{Name: "idx_tags", Fields: []string{"tags"}},
}

// genSnapshot 以位掩码生成快照：bit0 存在，bit1 nullable，bit2 unique，bit3 repeated
func genSnapshot() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(len(fieldUniverse), gen.IntRange(0, 15)),
		gen.SliceOfN(len(indexUniverse), gen.IntRange(0, 3)),
	).Map(func(values []interface{}) *models.ContractSnapshot {
		fieldMasks := values[0].([]int)
		indexMasks := values[1].([]int)

		c := &models.ContractSnapshot{ContractName: "UserContract"}
		for i, mask := range fieldMasks {
			if mask&1 == 0 {
				continue
			}
			f := fieldUniverse[i]
			f.Nullable = mask&2 != 0
			f.Unique = mask&4 != 0
			f.Repeated = mask&8 != 0
			c.Fields = append(c.Fields, f)
		}
		for i, mask := range indexMasks {
			if mask&1 == 0 {
				continue
			}
			idx := indexUniverse[i]
			idx.Fields = append([]string(nil), idx.Fields...)
			idx.Options.Unique = mask&2 != 0
			c.Indexes = append(c.Indexes, idx)
		}
		return c
	})
}

func TestProperty_DetectReportsChangeIffSnapshotsDiffer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("Detect(a, b) == nil iff fields and indexes are equal", prop.ForAll(
		func(a, b *models.ContractSnapshot) bool {
			equal := reflect.DeepEqual(a.Fields, b.Fields) && reflect.DeepEqual(a.Indexes, b.Indexes)
			return (NewDetector().Detect(a, b) == nil) == equal
		},
		genSnapshot(), genSnapshot(),
	))

	properties.Property("Detect(a, a) == nil", prop.ForAll(
		func(a *models.ContractSnapshot) bool {
			return NewDetector().Detect(a, a) == nil
		},
		genSnapshot(),
	))

	properties.Property("Detect(nil, c) adds every field and index", prop.ForAll(
		func(c *models.ContractSnapshot) bool {
			cs, ok := NewDetector().Detect(nil, c).(*models.ChangeSet)
			return ok && cs.HasChanges &&
				len(cs.AddedFields) == len(c.Fields) &&
				len(cs.AddedIndexes) == len(c.Indexes)
		},
		genSnapshot(),
	))

	properties.TestingRun(t)
}
