package repository

import (
	"testing"

	"contractstore-service/service/database"
	"contractstore-service/service/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const sampleHex = "507f1f77bcf86cd799439011"

func TestBuildFilter_MongoRenamesAndCoercesID(t *testing.T) {
	out := BuildFilter(database.DialectMongoDB, models.Filter{"id": sampleHex, "name": "alice"})

	oid, err := bson.ObjectIDFromHex(sampleHex)
	require.NoError(t, err)
	assert.Equal(t, oid, out["_id"])
	assert.Equal(t, "alice", out["name"])
	_, hasID := out["id"]
	assert.False(t, hasID)
}

func TestBuildFilter_MongoKeepsUncoercibleID(t *testing.T) {
	// "123" 不是合法的 ObjectID，键仍改名但值保留
	out := BuildFilter(database.DialectMongoDB, models.Filter{"id": "123"})
	assert.Equal(t, models.Filter{"_id": "123"}, out)
}

func TestBuildFilter_CoercesEachInElement(t *testing.T) {
	other := "507f191e810c19729de860ea"
	out := BuildFilter(database.DialectMongoDB, models.Filter{
		"id": map[string]interface{}{models.OpIn: []string{sampleHex, other}},
	})

	cond, ok := out["_id"].(map[string]interface{})
	require.True(t, ok)
	list, ok := cond[models.OpIn].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.IsType(t, bson.ObjectID{}, list[0])
	assert.Equal(t, other, list[1].(bson.ObjectID).Hex())
}

func TestBuildFilter_RelationalIDStaysString(t *testing.T) {
	out := BuildFilter(database.DialectPostgres, models.Filter{"_id": 42})
	assert.Equal(t, models.Filter{"id": "42"}, out)
}

func TestBuildFilter_IdentityWithoutIDKey(t *testing.T) {
	in := models.Filter{"name": "bob", "age": map[string]interface{}{models.OpGt: 3}}
	for _, d := range []database.Dialect{database.DialectPostgres, database.DialectMongoDB} {
		assert.Equal(t, in, BuildFilter(d, in), "dialect %s", d)
	}
}

func TestProperty_BuildFilterIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	keyGen := gen.Identifier().SuchThat(func(k string) bool { return !isIDKey(k) })
	filterGen := gen.MapOf(keyGen, gen.AnyString())

	properties.Property("过滤条件不含标识字段时原样返回", prop.ForAll(
		func(m map[string]string) bool {
			in := models.Filter{}
			for k, v := range m {
				in[k] = v
			}
			for _, d := range []database.Dialect{database.DialectSQLite, database.DialectMongoDB} {
				out := BuildFilter(d, in)
				if len(out) != len(in) {
					return false
				}
				for k, v := range in {
					if out[k] != v {
						return false
					}
				}
			}
			return true
		},
		filterGen,
	))

	properties.TestingRun(t)
}

func TestParseQuery_Defaults(t *testing.T) {
	q, p := ParseQuery(database.DialectPostgres, map[string]interface{}{
		"search":      "Al",
		"searchField": "name",
	})

	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, "id", q.SortBy)
	assert.Equal(t, models.SortAsc, q.SortDir)
	require.NotNil(t, q.Search)
	assert.Equal(t, models.Search{Field: "name", Term: "Al"}, *q.Search)
	assert.Empty(t, q.Filter)

	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "Al", p.Search)
	assert.Equal(t, "name", p.SearchField)
}

func TestParseQuery_Clamps(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]interface{}
		wantLimit  int
		wantOffset int
	}{
		{"limit为0", map[string]interface{}{"limit": 0}, 1, 0},
		{"limit超上限", map[string]interface{}{"limit": 5000}, 1000, 0},
		{"字符串limit", map[string]interface{}{"limit": "25"}, 25, 0},
		{"无法解析的limit", map[string]interface{}{"limit": "abc"}, 10, 0},
		{"负offset", map[string]interface{}{"offset": -5}, 10, 0},
		{"字符串offset", map[string]interface{}{"offset": "30"}, 10, 30},
		{"前导零limit按十进制", map[string]interface{}{"limit": "010"}, 10, 0},
		{"前导零limit含8", map[string]interface{}{"limit": "08"}, 8, 0},
		{"前导零offset含9", map[string]interface{}{"offset": "09"}, 10, 9},
		{"前导零offset按十进制", map[string]interface{}{"offset": "010"}, 10, 10},
		{"带尾随字符的limit", map[string]interface{}{"limit": "12abc"}, 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, p := ParseQuery(database.DialectSQLite, tt.params)
			assert.Equal(t, tt.wantLimit, q.Limit)
			assert.Equal(t, tt.wantOffset, q.Offset)
			assert.Equal(t, q.Limit, p.Limit)
			assert.Equal(t, q.Offset, p.Offset)
		})
	}
}

func TestParseQuery_SortAndFilters(t *testing.T) {
	q, p := ParseQuery(database.DialectSQLite, map[string]interface{}{
		"sortBy": "name",
		"sort":   "desc",
		"name":   "<b>",
		"age":    30,
	})

	assert.Equal(t, "name", q.SortBy)
	assert.Equal(t, models.SortDesc, q.SortDir)
	assert.Equal(t, models.Filter{"name": "&lt;b&gt;", "age": 30}, q.Filter)
	assert.Equal(t, map[string]interface{}{"name": "&lt;b&gt;", "age": 30}, p.Filters)
	assert.Nil(t, q.Search)
}

func TestParseQuery_SearchNeedsBothParams(t *testing.T) {
	q, _ := ParseQuery(database.DialectSQLite, map[string]interface{}{"search": "x"})
	assert.Nil(t, q.Search)
}

func TestParseQuery_MongoSortsByObjectID(t *testing.T) {
	q, p := ParseQuery(database.DialectMongoDB, map[string]interface{}{"id": sampleHex})

	assert.Equal(t, "_id", q.SortBy)
	assert.Equal(t, "id", p.SortBy)
	assert.Contains(t, q.Filter, "_id")
	assert.Equal(t, sampleHex, p.Filters["id"])
}

func TestEscape(t *testing.T) {
	assert.Equal(t, 42, Escape(42))
	assert.Equal(t, nil, Escape(nil))
	assert.Equal(t, "&amp;lt;", Escape("&lt;"))
	assert.Equal(t, `a\\b\$c\/d`, Escape(`a\b$c/d`))
	assert.Equal(t, "&quot;x&#x27;", Escape(`"x'`))
	assert.Equal(t, "created_at", EscapeString("created_at"))
}

func TestCoerceID(t *testing.T) {
	t.Run("relational", func(t *testing.T) {
		id, err := CoerceID(database.DialectPostgres, 7)
		require.NoError(t, err)
		assert.Equal(t, RawID("7"), id)

		again, err := CoerceID(database.DialectPostgres, id)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		_, err = CoerceID(database.DialectPostgres, nil)
		assert.Error(t, err)
	})

	t.Run("document", func(t *testing.T) {
		id, err := CoerceID(database.DialectMongoDB, sampleHex)
		require.NoError(t, err)
		assert.Equal(t, sampleHex, id.String())

		again, err := CoerceID(database.DialectMongoDB, id)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		fromRaw, err := CoerceID(database.DialectMongoDB, RawID(sampleHex))
		require.NoError(t, err)
		assert.Equal(t, id, fromRaw)

		_, err = CoerceID(database.DialectMongoDB, "123")
		assert.Error(t, err)
		_, err = CoerceID(database.DialectMongoDB, 3.5)
		assert.Error(t, err)
	})

	assert.Equal(t, "_id", IDFieldName(database.DialectMongoDB))
	assert.Equal(t, "id", IDFieldName(database.DialectMySQL))
}
