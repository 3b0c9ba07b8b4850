package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"contractstore-service/service/config"
	"contractstore-service/service/database"
	"contractstore-service/service/models"
	"contractstore-service/service/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userContractJSON = `{
  "contractName": "UserContract",
  "fields": [
    {"propertyKey": "id", "protoType": "uuid"},
    {"propertyKey": "name", "protoType": "string"},
    {"propertyKey": "deleted", "protoType": "bool", "defaultValue": false},
    {"propertyKey": "deletedAt", "protoType": "datetime", "nullable": true},
    {"propertyKey": "createdAt", "protoType": "datetime", "nullable": true},
    {"propertyKey": "updatedAt", "protoType": "datetime", "nullable": true}
  ],
  "options": {"softDelete": true, "timestamps": true}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	contracts := filepath.Join(dir, "contracts")
	require.NoError(t, os.MkdirAll(contracts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contracts, "user.json"), []byte(userContractJSON), 0o644))

	cfg := config.Default()
	cfg.Database.Dialect = string(database.DialectSQLite)
	cfg.Database.SQLitePath = filepath.Join(dir, "store.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.SchemaSync = true
	cfg.Migration.Dir = filepath.Join(dir, "migrations")
	cfg.Migration.ContractsDir = contracts
	return cfg
}

func TestInitialize_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Initialize(ctx, testConfig(t), Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer s.Close(ctx)

	assert.Equal(t, []string{"UserContract"}, s.Contracts.Names())
	assert.NotNil(t, s.Migrations)
	assert.NotNil(t, s.Cleanup)

	users, ok := s.Facade("User")
	require.True(t, ok)

	record, err := users.Insert(ctx, models.Record{"name": "alice"})
	require.NoError(t, err)

	page, err := users.GetAll(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Count)
	assert.Equal(t, record["id"], page.Data[0]["id"])

	// 等待异步旁路写完审计记录
	s.async.Close()
	var count int64
	db := s.Driver.(*repository.RelationalDriver).DB()
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity = ?", "User").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInitialize_ExistingTablesAreKept(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := Initialize(ctx, cfg, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	users, _ := first.Facade("User")
	_, err = users.Insert(ctx, models.Record{"name": "bob"})
	require.NoError(t, err)
	first.Close(ctx)

	second, err := Initialize(ctx, cfg, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer second.Close(ctx)

	users, _ = second.Facade("User")
	page, err := users.GetAll(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Count)
}

func TestInitialize_InvalidContracts(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Migration.ContractsDir, "broken.json"), []byte(`{"fields": []}`), 0o644))

	_, err := Initialize(context.Background(), cfg, Options{Registerer: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestInitialize_BadResolverScript(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolvers = map[string]string{"broken": "return record, nil +"}

	_, err := Initialize(context.Background(), cfg, Options{Registerer: prometheus.NewRegistry()})
	assert.ErrorContains(t, err, "broken")
}

func TestInitialize_MissingTableHasNoFacade(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database.SchemaSync = false

	s, err := Initialize(ctx, cfg, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer s.Close(ctx)

	_, ok := s.Facade("User")
	assert.False(t, ok)

	shape, err := s.Entities.Lookup("User")
	require.NoError(t, err)
	assert.False(t, shape.Present)
}
