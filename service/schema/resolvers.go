/*
 * @module service/schema/resolvers
 * @description 结果解析器注册表，按请求顺序对查询结果逐个应用
 * @architecture 责任链模式
 * @rules 未注册的解析器名直接跳过；任一解析器出错则整个查询失败
 * @refs service/schema/script_resolver.go, service/schema/facade.go
 */

package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contractstore-service/service/models"
)

// Resolver 命名的结果后处理函数，作用于实体映射之后的单条记录
type Resolver func(ctx context.Context, record models.Record) (models.Record, error)

// ResolverRegistry 解析器注册表
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewResolverRegistry 创建解析器注册表
func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{resolvers: make(map[string]Resolver)}
}

// Register 注册解析器，同名覆盖
func (r *ResolverRegistry) Register(name string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = resolver
}

// Get 按名称查找
func (r *ResolverRegistry) Get(name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[name]
	return resolver, ok
}

// Names 已注册的解析器名称
func (r *ResolverRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply 按给定顺序依次应用解析器，未注册的名称直接跳过
func (r *ResolverRegistry) Apply(ctx context.Context, names []string, record models.Record) (models.Record, error) {
	if r == nil {
		return record, nil
	}
	for _, name := range names {
		resolver, ok := r.Get(name)
		if !ok {
			continue
		}
		out, err := resolver(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("解析器 %s 执行失败: %w", name, err)
		}
		if out != nil {
			record = out
		}
	}
	return record, nil
}
