package contract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userContract() *models.ContractSnapshot {
	return &models.ContractSnapshot{
		ContractName: "UserContract",
		Fields: []models.FieldSpec{
			{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
			{PropertyKey: "name", ProtoType: models.FieldTypeString},
		},
	}
}

func TestRegistry_LoadOnce(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(userContract()))
	assert.True(t, r.Loaded())

	c, ok := r.Get("UserContract")
	require.True(t, ok)
	assert.Len(t, c.Fields, 2)

	assert.Error(t, r.Load(userContract()))
}

func TestRegistry_RejectsInvalidAndDuplicate(t *testing.T) {
	bad := userContract()
	bad.Fields = append(bad.Fields, models.FieldSpec{PropertyKey: "name", ProtoType: models.FieldTypeString})
	err := NewRegistry().Load(bad)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidContract))

	err = NewRegistry().Load(userContract(), userContract())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidContract))
}

func TestRegistry_NamesSorted(t *testing.T) {
	post := &models.ContractSnapshot{ContractName: "PostContract"}
	r := NewRegistry()
	require.NoError(t, r.Load(userContract(), post))
	assert.Equal(t, []string{"PostContract", "UserContract"}, r.Names())
	assert.Equal(t, "PostContract", r.All()[0].ContractName)
}

func TestLoadDir_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonBody := `{"contractName":"UserContract","fields":[{"propertyKey":"id","protoType":"uuid"},{"propertyKey":"email","protoType":"string","unique":true}],"options":{"softDelete":true}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(jsonBody), 0o644))

	yamlBody := `
- contractName: PostContract
  fields:
    - propertyKey: id
      protoType: uuid
    - propertyKey: tags
      protoType: string
      repeated: true
  indexes:
    - name: idx_post_tags
      fields: [tags]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.yaml"), []byte(yamlBody), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	r, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"PostContract", "UserContract"}, r.Names())

	user, _ := r.Get("UserContract")
	assert.True(t, user.Options.SoftDelete)
	email, ok := user.Field("email")
	require.True(t, ok)
	assert.True(t, email.Unique)

	post, _ := r.Get("PostContract")
	require.Len(t, post.Indexes, 1)
	assert.Equal(t, []string{"tags"}, post.Indexes[0].Fields)
}

func TestReadFile_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	_, err := ReadFile(path)
	assert.Error(t, err)
}
