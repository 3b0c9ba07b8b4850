/*
 * @module service/schema/script_resolver
 * @description 脚本解析器，使用 Yaegi 解释执行配置中的 Go 脚本作为结果后处理
 * @architecture 策略模式 - 运行时可配置的解析器实现
 * @stateFlow 脚本文本 -> 包装为 Resolve 函数 -> 编译(按哈希缓存) -> 逐条记录执行
 * @rules 脚本体即 Resolve 函数体，入参为 record，返回处理后的 record 与 error
 * @dependencies github.com/traefik/yaegi
 * @refs service/schema/resolvers.go
 */

package schema

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"

	"contractstore-service/service/models"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

type scriptFunc func(map[string]interface{}) (map[string]interface{}, error)

// ScriptCompiler 脚本编译器，相同脚本只编译一次
type ScriptCompiler struct {
	mu    sync.RWMutex
	cache map[string]scriptFunc
}

// NewScriptCompiler 创建脚本编译器
func NewScriptCompiler() *ScriptCompiler {
	return &ScriptCompiler{cache: make(map[string]scriptFunc)}
}

// Compile 编译脚本为解析器
func (c *ScriptCompiler) Compile(script string) (Resolver, error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	c.mu.RLock()
	fn, ok := c.cache[hash]
	c.mu.RUnlock()

	if !ok {
		var err error
		fn, err = compileScript(script)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[hash] = fn
		c.mu.Unlock()
	}

	return func(ctx context.Context, record models.Record) (models.Record, error) {
		out, err := fn(map[string]interface{}(record))
		if err != nil {
			return nil, err
		}
		return models.Record(out), nil
	}, nil
}

// CacheSize 已缓存的脚本数量
func (c *ScriptCompiler) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func compileScript(script string) (scriptFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：脚本内容作为 Resolve 的函数体
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
	"time"
)

var (
	_ = fmt.Sprint
	_ = strings.ToUpper
	_ = time.Now
)

func Resolve(record map[string]interface{}) (map[string]interface{}, error) {
%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Resolve")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Resolve 函数: %w", err)
	}

	fn, ok := v.Interface().(func(map[string]interface{}) (map[string]interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Resolve 函数签名必须是 func(map[string]interface{}) (map[string]interface{}, error)")
	}
	return fn, nil
}

// RegisterScripts 编译并注册一组脚本解析器
func (r *ResolverRegistry) RegisterScripts(compiler *ScriptCompiler, scripts map[string]string) error {
	for name, script := range scripts {
		resolver, err := compiler.Compile(script)
		if err != nil {
			return fmt.Errorf("解析器 %s: %w", name, err)
		}
		r.Register(name, resolver)
	}
	return nil
}
