/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @stateFlow 测试环境初始化 -> 契约建表 -> 测试数据创建 -> 测试执行
 * @rules 提供可重用的测试工具，确保测试环境的一致性；不依赖仓储与门面包以避免循环引用
 * @dependencies gorm, sqlite, testify
 * @refs service/models, service/database
 */

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"contractstore-service/service/database"
	"contractstore-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库，每次调用都是独立的内存库
func NewTestDB() *TestDB {
	// 共享缓存的命名内存库，保证连接池中的多个连接看到同一份数据
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", generateID("testdb"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	if err := database.AutoMigrate(db); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清空指定表
func (tdb *TestDB) CleanDB(tables ...string) {
	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", database.QuoteIdentifier(database.DialectSQLite, table)))
	}
}

// CreateContractTable 按契约建表
func (tdb *TestDB) CreateContractTable(c *models.ContractSnapshot) string {
	table := database.TableNameFor(c)
	stmts, err := database.NewSchemaService(database.DialectSQLite).RenderOp(models.CreateTable{
		Table:   table,
		Columns: database.ColumnsFor(database.DialectSQLite, c.Fields),
		Indexes: c.Indexes,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to render contract table: %v", err))
	}
	for _, stmt := range stmts {
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			panic(fmt.Sprintf("failed to create contract table %s: %v", table, err))
		}
	}
	return table
}

// UserContract 测试用用户契约，开启软删除、时间戳与归属
func UserContract() *models.ContractSnapshot {
	return &models.ContractSnapshot{
		ContractName: "UserContract",
		Fields: []models.FieldSpec{
			{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
			{PropertyKey: "name", ProtoType: models.FieldTypeString},
			{PropertyKey: "email", ProtoType: models.FieldTypeString, Unique: true, Nullable: true},
			{PropertyKey: "age", ProtoType: models.FieldTypeInt32, Nullable: true},
			{PropertyKey: "tags", ProtoType: models.FieldTypeString, Repeated: true, Nullable: true},
			{PropertyKey: "deleted", ProtoType: models.FieldTypeBool, Default: false},
			{PropertyKey: "deletedAt", ProtoType: models.FieldTypeDatetime, Nullable: true},
			{PropertyKey: "createdAt", ProtoType: models.FieldTypeDatetime, Nullable: true},
			{PropertyKey: "updatedAt", ProtoType: models.FieldTypeDatetime, Nullable: true},
			{PropertyKey: "createdBy", ProtoType: models.FieldTypeString, Nullable: true},
			{PropertyKey: "updatedBy", ProtoType: models.FieldTypeString, Nullable: true},
		},
		Indexes: []models.IndexSpec{
			{Name: "idx_user_name", Fields: []string{"name"}},
		},
		Options: models.ContractOptions{
			SoftDelete:  true,
			Timestamps:  true,
			Attribution: true,
		},
	}
}

// PostContract 测试用文章契约，不开启任何策略
func PostContract() *models.ContractSnapshot {
	return &models.ContractSnapshot{
		ContractName: "PostContract",
		Fields: []models.FieldSpec{
			{PropertyKey: "id", ProtoType: models.FieldTypeUUID},
			{PropertyKey: "title", ProtoType: models.FieldTypeString},
			{PropertyKey: "authorId", ProtoType: models.FieldTypeUUID, Nullable: true},
		},
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// UserOption 用户数据选项函数类型
type UserOption func(map[string]interface{})

// CreateUser 直接写入一条用户数据
func (f *TestDataFactory) CreateUser(name string, opts ...UserOption) map[string]interface{} {
	user := map[string]interface{}{
		"id":      generateID("u"),
		"name":    name,
		"email":   fmt.Sprintf("%s@example.com", name),
		"deleted": false,
	}

	// 应用选项
	for _, opt := range opts {
		opt(user)
	}

	if err := f.DB.Table("user").Create(user).Error; err != nil {
		panic(fmt.Sprintf("failed to create test user: %v", err))
	}
	return user
}

// WithAge 设置年龄
func WithAge(age int) UserOption {
	return func(u map[string]interface{}) { u["age"] = age }
}

// WithID 指定主键
func WithID(id string) UserOption {
	return func(u map[string]interface{}) { u["id"] = id }
}

// Deleted 标记为已软删除
func Deleted() UserOption {
	return func(u map[string]interface{}) { u["deleted"] = true }
}

var idSeq struct {
	sync.Mutex
	n int
}

// 辅助函数
func generateID(prefix string) string {
	idSeq.Lock()
	defer idSeq.Unlock()
	idSeq.n++
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), idSeq.n)
}

// MockEventSink Mock查询事件旁路
type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) Emit(ctx context.Context, event models.QueryEvent) {
	m.Called(ctx, event)
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// DecodeJSON 解析响应体
func (h *HTTPTestHelper) DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
