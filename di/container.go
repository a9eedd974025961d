package di

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

var (
	ErrNotFound = errors.New("di: service not found")
	ErrNotBuilt = errors.New("di: container not built")
)

// Container 服务注册表。Build 之前只能 Add，之后只能解析。
type Container interface {
	Add(def *ServiceDefinition) error
	// Build 检查依赖图并按依赖顺序创建全部单例
	Build() error

	Get(typ reflect.Type) (any, error)
	GetNamed(typ reflect.Type, name string) (any, error)
	// GetContext 系列把 ctx 传给 Provider 与 CustomScope
	GetContext(ctx context.Context, typ reflect.Type) (any, error)
	GetNamedContext(ctx context.Context, typ reflect.Type, name string) (any, error)

	Has(typ reflect.Type, name string) bool
	CreateScope() Scope

	serviceCount() int
}

type container struct {
	mu      sync.RWMutex
	defs    map[ServiceKey]*ServiceDefinition
	order   []ServiceKey
	built   atomic.Bool
	creator *resolver
}

func NewContainer() Container {
	return &container{
		defs:    make(map[ServiceKey]*ServiceDefinition),
		creator: newResolver(),
	}
}

func (c *container) Add(def *ServiceDefinition) error {
	if c.built.Load() {
		return fmt.Errorf("di: cannot register %v after build", def.Type)
	}
	if def.Scope == ScopeCustom && def.Custom == nil {
		return fmt.Errorf("di: service %v uses a custom scope but none was given", def.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := def.Key()
	if _, dup := c.defs[key]; dup {
		return fmt.Errorf("di: service %v already registered", key)
	}
	c.defs[key] = def
	return nil
}

func (c *container) Build() error {
	c.mu.Lock()
	if c.built.Load() {
		c.mu.Unlock()
		return nil
	}
	order, err := newGraphBuilder(c.defs).buildOrder()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	// ID 按依赖顺序分配，作用域用它索引实例槽位
	for id, key := range order {
		c.defs[key].ID = id
	}
	c.order = order
	c.built.Store(true)
	c.mu.Unlock()

	for _, key := range order {
		if c.defs[key].Scope != ScopeSingleton {
			continue
		}
		if _, err := c.GetNamed(key.Type, key.Name); err != nil {
			return fmt.Errorf("di: build singleton %v: %w", key, err)
		}
	}
	return nil
}

func (c *container) Get(typ reflect.Type) (any, error) {
	return c.resolve(context.Background(), c, nil, typ, "")
}

func (c *container) GetNamed(typ reflect.Type, name string) (any, error) {
	return c.resolve(context.Background(), c, nil, typ, name)
}

func (c *container) GetContext(ctx context.Context, typ reflect.Type) (any, error) {
	return c.resolve(ctx, c, nil, typ, "")
}

func (c *container) GetNamedContext(ctx context.Context, typ reflect.Type, name string) (any, error) {
	return c.resolve(ctx, c, nil, typ, name)
}

// resolve 是容器与作用域共用的解析入口。
// via 用来解析依赖，sc 为空表示在根容器上解析。
func (c *container) resolve(ctx context.Context, via Container, sc *scope, typ reflect.Type, name string) (any, error) {
	def, err := c.lookup(typ, name)
	if err != nil {
		return nil, err
	}

	switch def.Scope {
	case ScopeSingleton:
		def.singletonOnce.Do(func() {
			def.singletonInst, def.singletonErr = c.creator.createInstance(ctx, c, def)
		})
		return def.singletonInst, def.singletonErr
	case ScopeTransient:
		return c.creator.createInstance(ctx, via, def)
	case ScopeCustom:
		return def.Custom.Get(ctx, def.Key(), func(ctx context.Context) (any, error) {
			return c.creator.createInstance(ctx, via, def)
		})
	case ScopeScoped:
		if sc == nil {
			return nil, fmt.Errorf("di: scoped service %v cannot be resolved from the root container, use CreateScope()", def.Key())
		}
		return sc.instance(ctx, def)
	}
	return nil, fmt.Errorf("di: unknown scope %v", def.Scope)
}

func (c *container) Has(typ reflect.Type, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[ServiceKey{Type: typ, Name: name}]
	return ok
}

// lookup 构建后 defs 不再变化，读取不加锁
func (c *container) lookup(typ reflect.Type, name string) (*ServiceDefinition, error) {
	if !c.built.Load() {
		return nil, ErrNotBuilt
	}
	key := ServiceKey{Type: typ, Name: name}
	def, ok := c.defs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return def, nil
}

func (c *container) CreateScope() Scope {
	return newScope(c)
}

func (c *container) serviceCount() int {
	return len(c.order)
}
