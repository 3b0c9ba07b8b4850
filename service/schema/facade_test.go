package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"
	"contractstore-service/service/repository"
	"contractstore-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type facadeFixture struct {
	db        *testutil.TestDB
	factory   *testutil.TestDataFactory
	repo      *repository.Repository
	users     *Facade
	posts     *Facade
	resolvers *ResolverRegistry
}

func setupFacade(t *testing.T) *facadeFixture {
	t.Helper()

	db := testutil.NewTestDB()
	db.CreateContractTable(testutil.UserContract())
	db.CreateContractTable(testutil.PostContract())

	driver := repository.NewRelationalDriver(db.DB, database.DialectSQLite)
	tables, err := driver.ListTables(context.Background())
	require.NoError(t, err)

	entities := repository.NewEntityRegistry()
	require.NoError(t, entities.Load(tables, []*models.ContractSnapshot{testutil.UserContract(), testutil.PostContract()}))
	repo := repository.NewRepository(driver, entities, repository.Options{})

	resolvers := NewResolverRegistry()
	return &facadeFixture{
		db:        db,
		factory:   testutil.NewTestDataFactory(db.DB),
		repo:      repo,
		users:     NewContractFacade(repo, testutil.UserContract(), resolvers),
		posts:     NewContractFacade(repo, testutil.PostContract(), resolvers),
		resolvers: resolvers,
	}
}

func TestFacade_SoftDeleteTwice(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()
	f.factory.CreateUser("frank", testutil.WithID("42"))

	res, err := f.users.Delete(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.MutationResult{Success: true, Affected: 1}, res)

	res, err = f.users.Delete(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.MutationResult{Success: false, Affected: 0}, res)

	_, err = f.users.GetByID(ctx, "42", nil)
	assert.True(t, errors.Is(err, apperrors.ErrNoValidResult))

	// 记录未被物理删除
	var count int64
	require.NoError(t, f.db.DB.Table("user").Where("id = ?", "42").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.db.DB.Table("user").Where(`id = ? AND "deletedAt" IS NOT NULL`, "42").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFacade_PhysicalDeleteWithoutSoftDelete(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()

	post, err := f.posts.Insert(ctx, models.Record{"title": "hello"})
	require.NoError(t, err)

	res, err := f.posts.Delete(ctx, post["id"])
	require.NoError(t, err)
	assert.Equal(t, models.MutationResult{Success: true, Affected: 1}, res)

	_, err = f.posts.GetByID(ctx, post["id"], nil)
	assert.True(t, errors.Is(err, apperrors.ErrNoValidResult))
}

func TestFacade_GetAllHidesDeletedAndAppliesResolvers(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()

	f.factory.CreateUser("alice", testutil.WithID("1"))
	f.factory.CreateUser("bob", testutil.WithID("2"), testutil.Deleted())
	f.factory.CreateUser("carol", testutil.WithID("3"))

	f.resolvers.Register("upper", func(ctx context.Context, r models.Record) (models.Record, error) {
		r["name"] = strings.ToUpper(r["name"].(string))
		return r, nil
	})
	f.resolvers.Register("suffix", func(ctx context.Context, r models.Record) (models.Record, error) {
		r["name"] = r["name"].(string) + "!"
		return r, nil
	})

	page, err := f.users.GetAll(ctx, map[string]interface{}{"deleted": true}, nil, &QueryOptions{
		Resolvers: []string{"upper", "missing", "suffix"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Count)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "ALICE!", page.Data[0]["name"])
	assert.Equal(t, "CAROL!", page.Data[1]["name"])
	assert.Equal(t, false, page.Data[0]["deleted"])
	assert.Equal(t, false, page.Pagination.Filters["deleted"])
}

func TestFacade_ResolverErrorFailsQuery(t *testing.T) {
	f := setupFacade(t)
	f.factory.CreateUser("alice", testutil.WithID("1"))
	f.resolvers.Register("boom", func(ctx context.Context, r models.Record) (models.Record, error) {
		return nil, errors.New("boom")
	})

	_, err := f.users.GetAll(context.Background(), nil, nil, &QueryOptions{Resolvers: []string{"boom"}})
	assert.ErrorContains(t, err, "boom")
}

func TestFacade_GetIn(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()

	f.factory.CreateUser("alice", testutil.WithID("1"))
	f.factory.CreateUser("bob", testutil.WithID("2"), testutil.Deleted())
	f.factory.CreateUser("carol", testutil.WithID("3"))

	page, err := f.users.GetIn(ctx, []string{"1", "2", "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Count)

	page, err = f.users.GetIn(ctx, "3", nil)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "carol", page.Data[0]["name"])
	assert.Equal(t, 1, page.Pagination.Limit)
}

func TestFacade_InsertAppliesPolicies(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	f.users.now = func() time.Time { return fixed }

	record, err := f.users.Insert(ctx, models.Record{"name": "gina", "email": "gina@example.com"})
	require.NoError(t, err)
	assert.Len(t, record["id"], 36)
	assert.Equal(t, false, record[FieldDeleted])
	assert.Equal(t, fixed, record[FieldCreatedAt])
	assert.Equal(t, fixed, record[FieldUpdatedAt])

	single, err := f.users.GetByID(ctx, record["id"], nil)
	require.NoError(t, err)
	assert.Equal(t, "gina", single.Data["name"])
	assert.Equal(t, false, single.Data[FieldDeleted])

	_, err = f.users.Insert(ctx, models.Record{"name": "dup", "email": "gina@example.com"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeOperationDegraded, apperrors.GetCode(err))
}

func TestFacade_UpdateStripsDeleted(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()
	f.factory.CreateUser("henry", testutil.WithID("7"))

	res, err := f.users.Update(ctx, "7", models.Record{"name": "hank", "deleted": true})
	require.NoError(t, err)
	assert.Equal(t, models.MutationResult{Success: true, Affected: 1}, res)

	single, err := f.users.GetByID(ctx, "7", nil)
	require.NoError(t, err)
	assert.Equal(t, "hank", single.Data["name"])
	assert.Equal(t, false, single.Data[FieldDeleted])
	assert.NotNil(t, single.Data[FieldUpdatedAt])

	res, err = f.users.Update(ctx, "404", models.Record{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, models.MutationResult{Success: false, Affected: 0}, res)
}

func TestFacade_ExtraData(t *testing.T) {
	f := setupFacade(t)
	ctx := context.Background()
	reqCtx := &models.RequestContext{UserID: "u-1"}

	out := f.users.ExtraData(ctx, reqCtx, models.Record{"name": "x"}, true)
	assert.Equal(t, models.Record{"name": "x", FieldCreatedBy: "u-1", FieldUpdatedBy: "u-1"}, out)

	out = f.users.ExtraData(ctx, reqCtx, models.Record{"name": "x"}, false)
	assert.Equal(t, models.Record{"name": "x", FieldUpdatedBy: "u-1"}, out)

	// 未开启归属策略
	out = f.posts.ExtraData(ctx, reqCtx, models.Record{"title": "t"}, true)
	assert.Equal(t, models.Record{"title": "t"}, out)

	out = f.users.ExtraData(ctx, nil, models.Record{"name": "x"}, true)
	assert.Equal(t, models.Record{"name": "x"}, out)
}

func TestFacade_ExtraDataDocumentDialect(t *testing.T) {
	// 仅使用标识转换，不会真正连接数据库
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	repo := repository.NewRepository(repository.NewDocumentDriver(client, "test"), repository.NewEntityRegistry(), repository.Options{})
	users := NewFacade(repo, "User", Options{Attribution: true}, nil, nil)
	ctx := context.Background()

	out := users.ExtraData(ctx, &models.RequestContext{UserID: "not-an-object-id"}, models.Record{"name": "x"}, true)
	assert.Equal(t, models.Record{"name": "x"}, out)

	hex := "507f1f77bcf86cd799439011"
	out = users.ExtraData(ctx, &models.RequestContext{UserID: hex}, models.Record{}, true)
	oid, err := bson.ObjectIDFromHex(hex)
	require.NoError(t, err)
	assert.Equal(t, oid, out[FieldCreatedBy])
	assert.Equal(t, oid, out[FieldUpdatedBy])
}

func TestEntityMapper(t *testing.T) {
	oid := bson.NewObjectID()
	mapper := EntityMapper(testutil.UserContract())

	record := mapper(models.Row{"_id": oid, "deleted": int64(1), "name": "x"})
	assert.Equal(t, models.Record{"id": oid.Hex(), "deleted": true, "name": "x"}, record)

	record = EntityMapper(nil)(models.Row{"deleted": int64(0)})
	assert.Equal(t, models.Record{"deleted": int64(0)}, record)
}
