package di

import (
	"context"
	"reflect"
	"sync"
)

// ScopeType 服务的生命周期
type ScopeType int

const (
	ScopeSingleton ScopeType = iota // 每个容器一个实例，Build 时创建
	ScopeTransient                  // 每次解析一个新实例
	ScopeScoped                     // 每个 Scope 一个实例
	ScopeCustom                     // 由 CustomScope 决定，例如请求作用域
)

var scopeNames = [...]string{"singleton", "transient", "scoped", "custom"}

func (s ScopeType) String() string {
	if s < 0 || int(s) >= len(scopeNames) {
		return "unknown"
	}
	return scopeNames[s]
}

// ServiceKey 类型加名称唯一确定一个服务
type ServiceKey struct {
	Type reflect.Type
	Name string
}

func (k ServiceKey) String() string {
	if k.Name == "" {
		return k.Type.String()
	}
	return k.Type.String() + "(name=" + k.Name + ")"
}

// Provider 按解析时的 ctx 创建实例
type Provider func(ctx context.Context) (any, error)

// CustomScope 可插拔的作用域。解析 ScopeCustom 服务时由它决定
// 复用已缓存的实例还是调用 provider。
type CustomScope interface {
	Get(ctx context.Context, key ServiceKey, provider Provider) (any, error)
}

// FieldInjection 一个带 `di` 标签的字段
type FieldInjection struct {
	Index       int
	Name        string
	Type        reflect.Type
	Optional    bool
	ServiceName string
}

// InjectionSchema Build 时分析出的注入点，解析时不再反射标签
type InjectionSchema struct {
	Fields []FieldInjection
	Args   []reflect.Type
}

// ServiceDefinition 一条注册记录。通常由 Register 与 Option 生成。
type ServiceDefinition struct {
	ID    int
	Type  reflect.Type
	Name  string
	Scope ScopeType

	Custom       CustomScope
	ImplType     reflect.Type
	Impl         any // 构造函数或现成实例
	Provider     Provider
	IsFactory    bool
	IsValue      bool
	InjectFields bool

	Schema *InjectionSchema

	singletonOnce sync.Once
	singletonInst any
	singletonErr  error
}

func (d *ServiceDefinition) Key() ServiceKey {
	return ServiceKey{Type: d.Type, Name: d.Name}
}
