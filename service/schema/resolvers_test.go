package schema

import (
	"context"
	"testing"

	"contractstore-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverRegistry_ApplyOrder(t *testing.T) {
	r := NewResolverRegistry()
	r.Register("a", func(ctx context.Context, rec models.Record) (models.Record, error) {
		rec["trace"] = rec["trace"].(string) + "a"
		return rec, nil
	})
	r.Register("b", func(ctx context.Context, rec models.Record) (models.Record, error) {
		rec["trace"] = rec["trace"].(string) + "b"
		return rec, nil
	})

	out, err := r.Apply(context.Background(), []string{"b", "unknown", "a", "b"}, models.Record{"trace": ""})
	require.NoError(t, err)
	assert.Equal(t, "bab", out["trace"])
	assert.Equal(t, []string{"a", "b"}, r.Names())

	var nilRegistry *ResolverRegistry
	out, err = nilRegistry.Apply(context.Background(), []string{"a"}, models.Record{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, models.Record{"x": 1}, out)
}

func TestScriptResolver(t *testing.T) {
	compiler := NewScriptCompiler()
	script := `
	first, _ := record["firstName"].(string)
	last, _ := record["lastName"].(string)
	record["fullName"] = strings.TrimSpace(first + " " + last)
	return record, nil
`
	resolver, err := compiler.Compile(script)
	require.NoError(t, err)

	out, err := resolver(context.Background(), models.Record{"firstName": "Ada", "lastName": "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", out["fullName"])

	_, err = compiler.Compile(script)
	require.NoError(t, err)
	assert.Equal(t, 1, compiler.CacheSize())
}

func TestScriptResolver_CompileError(t *testing.T) {
	_, err := NewScriptCompiler().Compile(`return record, nil +`)
	assert.Error(t, err)
}

func TestRegisterScripts(t *testing.T) {
	r := NewResolverRegistry()
	require.NoError(t, r.RegisterScripts(NewScriptCompiler(), map[string]string{
		"flag": `record["resolved"] = true
	return record, nil`,
	}))

	out, err := r.Apply(context.Background(), []string{"flag"}, models.Record{})
	require.NoError(t, err)
	assert.Equal(t, true, out["resolved"])
}
