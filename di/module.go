package di

import "fmt"

// Module 向容器贡献一组绑定。
type Module interface {
	Configure(b *Binder)
}

// ModuleFunc 允许普通函数作为 Module 使用。
type ModuleFunc func(b *Binder)

// Configure 实现 Module
func (f ModuleFunc) Configure(b *Binder) {
	f(b)
}

// Binder 是安装模块时使用的容器视图。
// 它实现了 Container，因此模块中可以直接使用 di.Register[T](b, ...)。
type Binder struct {
	Container
}

// NewBinder 创建绑定器
func NewBinder(c Container) *Binder {
	return &Binder{Container: c}
}

// Install 安装模块。模块内 Register 引发的 panic 会转换为错误返回。
func (b *Binder) Install(m Module) (err error) {
	if m == nil {
		return fmt.Errorf("di: cannot install nil module")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("di: install module %T: %v", m, r)
		}
	}()

	m.Configure(b)
	return nil
}

// Bind 在模块中注册 target，接受的形态同 RegisterAuto
//
//	b.Bind(di.TypeOf[*Service]())
//	b.Bind(NewRepository, di.WithScoped())
func (b *Binder) Bind(target any, opts ...Option) error {
	_, err := RegisterAuto(b, target, opts...)
	return err
}

// AsModule 将 Module、func(*Binder) 或 func() Module 转换为 Module。
func AsModule(v any) (Module, error) {
	switch m := v.(type) {
	case Module:
		return m, nil
	case func(*Binder):
		return ModuleFunc(m), nil
	case func() Module:
		return m(), nil
	case func() (Module, error):
		return m()
	}
	return nil, fmt.Errorf("di: %T is not a module", v)
}
