package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// Scope 一组 Scoped 服务实例的生命周期，例如一个请求或一次定时任务
type Scope interface {
	Container
	// Dispose 按创建的逆序关闭实现了 io.Closer 的实例，之后不能再解析 Scoped 服务
	Dispose() error
}

type slot struct {
	once sync.Once
	val  any
	err  error
}

type scope struct {
	parent *container

	mu       sync.Mutex
	slots    []*slot
	created  []any
	disposed bool
}

func newScope(parent *container) *scope {
	return &scope{parent: parent, slots: make([]*slot, parent.serviceCount())}
}

func (s *scope) Add(*ServiceDefinition) error {
	return errors.New("di: cannot register services on a scope")
}

func (s *scope) Build() error { return nil }

func (s *scope) CreateScope() Scope { return s.parent.CreateScope() }

func (s *scope) Has(typ reflect.Type, name string) bool { return s.parent.Has(typ, name) }

func (s *scope) Get(typ reflect.Type) (any, error) {
	return s.parent.resolve(context.Background(), s, s, typ, "")
}

func (s *scope) GetNamed(typ reflect.Type, name string) (any, error) {
	return s.parent.resolve(context.Background(), s, s, typ, name)
}

func (s *scope) GetContext(ctx context.Context, typ reflect.Type) (any, error) {
	return s.parent.resolve(ctx, s, s, typ, "")
}

func (s *scope) GetNamedContext(ctx context.Context, typ reflect.Type, name string) (any, error) {
	return s.parent.resolve(ctx, s, s, typ, name)
}

// instance 每个定义在作用域内只创建一次，创建失败的结果同样被记住
func (s *scope) instance(ctx context.Context, def *ServiceDefinition) (any, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, fmt.Errorf("di: scope disposed, cannot resolve %v", def.Key())
	}
	if def.ID < 0 || def.ID >= len(s.slots) {
		s.mu.Unlock()
		return nil, fmt.Errorf("di: invalid service id %d", def.ID)
	}
	sl := s.slots[def.ID]
	if sl == nil {
		sl = &slot{}
		s.slots[def.ID] = sl
	}
	s.mu.Unlock()

	// 依赖在 once 内部解析，不能持有 s.mu
	sl.once.Do(func() {
		sl.val, sl.err = s.parent.creator.createInstance(ctx, s, def)
		if sl.err == nil {
			s.mu.Lock()
			s.created = append(s.created, sl.val)
			s.mu.Unlock()
		}
	})
	return sl.val, sl.err
}

func (s *scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	created := s.created
	s.created, s.slots = nil, nil
	s.mu.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if closer, ok := created[i].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *scope) serviceCount() int { return s.parent.serviceCount() }
