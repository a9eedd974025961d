package di

import "reflect"

// Option 调整一条服务定义
type Option func(*ServiceDefinition)

// 生命周期

func WithScope(scope ScopeType) Option {
	return func(d *ServiceDefinition) { d.Scope = scope }
}

func WithSingleton() Option { return WithScope(ScopeSingleton) }

func WithTransient() Option { return WithScope(ScopeTransient) }

func WithScoped() Option { return WithScope(ScopeScoped) }

// WithCustomScope 交给 scope 决定实例缓存在哪里，例如请求作用域
func WithCustomScope(scope CustomScope) Option {
	return func(d *ServiceDefinition) {
		d.Scope = ScopeCustom
		d.Custom = scope
	}
}

// 实现来源

// WithValue 使用现成的实例，总是单例
func WithValue(v any) Option {
	return func(d *ServiceDefinition) {
		d.Impl, d.IsValue = v, true
		d.Scope = ScopeSingleton
	}
}

// WithFields 对 WithValue 的实例做 `di` 标签字段注入
func WithFields() Option {
	return func(d *ServiceDefinition) { d.InjectFields = true }
}

// WithFactory 使用构造函数创建实例，参数由容器注入，
// 可以额外返回一个 error。
func WithFactory(fn any) Option {
	return func(d *ServiceDefinition) {
		d.Impl, d.IsFactory = fn, true
	}
}

// WithProvider 由 p 在解析时创建实例。Provider 拿到解析时的 ctx，
// 它的依赖不进入依赖图。
func WithProvider(p Provider) Option {
	return func(d *ServiceDefinition) { d.Provider = p }
}

// Use 指定接口 T 的实现类型
func Use[T any]() Option {
	return func(d *ServiceDefinition) { d.ImplType = reflect.TypeOf((*T)(nil)).Elem() }
}

// WithName 命名注册，字段通过 `di:"name"` 选择
func WithName(name string) Option {
	return func(d *ServiceDefinition) { d.Name = name }
}
