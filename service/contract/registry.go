/*
 * @module service/contract/registry
 * @description 契约注册表，持有当前生效的契约快照，启动时一次性初始化
 * @architecture 领域服务层 - 注册表
 * @stateFlow 加载快照文件 -> 校验 -> Load 一次性写入 -> 只读查询
 * @rules 同一注册表只能 Load 一次；快照对外只读；名称重复视为契约错误
 * @dependencies gopkg.in/yaml.v3, contractstore-service/service/models
 * @refs service/migration/service.go, service/repository/registry.go
 */

package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "contractstore-service/service/errors"
	"contractstore-service/service/models"

	"gopkg.in/yaml.v3"
)

// Registry 契约注册表
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*models.ContractSnapshot
	loaded    bool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]*models.ContractSnapshot)}
}

// Load 一次性载入全部快照
func (r *Registry) Load(snapshots ...*models.ContractSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return fmt.Errorf("契约注册表已初始化，不能重复加载")
	}

	staged := make(map[string]*models.ContractSnapshot, len(snapshots))
	for _, s := range snapshots {
		if err := s.Validate(); err != nil {
			return apperrors.NewInvalidContract(err.Error())
		}
		if _, dup := staged[s.ContractName]; dup {
			return apperrors.NewInvalidContract(fmt.Sprintf("契约重复注册: %s", s.ContractName))
		}
		staged[s.ContractName] = s
	}

	r.contracts = staged
	r.loaded = true
	return nil
}

// Loaded 是否已初始化
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Get 按契约名查找
func (r *Registry) Get(name string) (*models.ContractSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[name]
	return c, ok
}

// Names 按字典序返回全部契约名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.contracts))
	for name := range r.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All 按契约名顺序返回全部快照
func (r *Registry) All() []*models.ContractSnapshot {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ContractSnapshot, 0, len(names))
	for _, name := range names {
		out = append(out, r.contracts[name])
	}
	return out
}

// ReadFile 读取单个快照文件，支持 .json / .yaml / .yml，文件内可以是单个快照或快照数组
func ReadFile(path string) ([]*models.ContractSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取契约文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	trimmed := strings.TrimSpace(string(data))

	var list []*models.ContractSnapshot
	switch ext {
	case ".json":
		if strings.HasPrefix(trimmed, "[") {
			err = json.Unmarshal(data, &list)
		} else {
			var single models.ContractSnapshot
			err = json.Unmarshal(data, &single)
			list = append(list, &single)
		}
	case ".yaml", ".yml":
		if strings.HasPrefix(trimmed, "-") {
			err = yaml.Unmarshal(data, &list)
		} else {
			var single models.ContractSnapshot
			err = yaml.Unmarshal(data, &single)
			list = append(list, &single)
		}
	default:
		return nil, fmt.Errorf("不支持的契约文件格式: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("解析契约文件 %s 失败: %w", path, err)
	}
	return list, nil
}

// ReadDir 读取目录下全部契约文件，按文件名顺序
func ReadDir(dir string) ([]*models.ContractSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取契约目录失败: %w", err)
	}

	var all []*models.ContractSnapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		list, err := ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	return all, nil
}

// LoadDir 从目录创建并初始化注册表
func LoadDir(dir string) (*Registry, error) {
	snapshots, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	if err := r.Load(snapshots...); err != nil {
		return nil, err
	}
	return r, nil
}
