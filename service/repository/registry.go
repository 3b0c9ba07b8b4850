/*
 * @module service/repository/registry
 * @description 实体注册表：启动时由驱动内省的表与契约快照一次性构建
 * @architecture 注册表模式 - 读多写少，读写锁保护
 * @stateFlow ListTables + 契约 -> EntityShape(实体、表、是否存在)
 * @rules 模块契约不注册；审计实体始终注册
 * @refs service/init.go, service/schema/facade.go
 */

package repository

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"
)

// EntityShape 实体的物理形态
type EntityShape struct {
	Entity   string
	Table    string
	Contract *models.ContractSnapshot // 仅由数据库表发现的实体为 nil
	Present  bool                     // 启动时驱动内省是否发现了该表
}

// repeatedFields 列表编码字段
func (s *EntityShape) repeatedFields() []string {
	if s.Contract == nil {
		return nil
	}
	var out []string
	for _, f := range s.Contract.Fields {
		if f.Repeated {
			out = append(out, f.PropertyKey)
		}
	}
	return out
}

// EntityRegistry 实体名 -> 物理形态，启动时一次性填充
type EntityRegistry struct {
	mu       sync.RWMutex
	entities map[string]*EntityShape
	loaded   bool
}

// NewEntityRegistry 创建实体注册表
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{entities: make(map[string]*EntityShape)}
}

// Load 按驱动内省结果与契约列表填充，只能调用一次
// 契约同时以完整契约名和去后缀的基础名注册
func (r *EntityRegistry) Load(tables []string, contracts []*models.ContractSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return fmt.Errorf("实体注册表已初始化")
	}

	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
		r.entities[t] = &EntityShape{Entity: t, Table: t, Present: true}
	}

	for _, c := range contracts {
		if c.Options.ModuleContract {
			continue
		}
		table := database.TableNameFor(c)
		shape := &EntityShape{
			Entity:   database.BaseName(c.ContractName),
			Table:    table,
			Contract: c,
			Present:  present[table],
		}
		if !shape.Present {
			slog.Warn("EntityRegistry.Load - 契约对应的表不存在", "contract", c.ContractName, "table", table)
		}
		r.entities[shape.Entity] = shape
		r.entities[c.ContractName] = shape
	}

	audit := &models.AuditLog{}
	r.entities[models.AuditEntity] = &EntityShape{
		Entity:  models.AuditEntity,
		Table:   audit.TableName(),
		Present: present[audit.TableName()],
	}

	r.loaded = true
	slog.Info("实体注册表初始化完成", "entities", len(r.entities))
	return nil
}

// Register 注册单个实体
func (r *EntityRegistry) Register(shape *EntityShape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[shape.Entity] = shape
}

// Lookup 查找实体，未注册返回 ENTITY_NOT_REGISTERED
func (r *EntityRegistry) Lookup(entity string) (*EntityShape, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shape, ok := r.entities[entity]
	if !ok {
		return nil, apperrors.NewEntityNotRegistered(entity)
	}
	return shape, nil
}

// Entities 全部实体名
func (r *EntityRegistry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
