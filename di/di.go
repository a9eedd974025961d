package di

import (
	"context"
	"fmt"
	"reflect"
)

// RegisterAuto 根据 target 的形态推断服务类型并注册：
//
//	reflect.Type        按类型注册，实例通过 `di` 标签字段注入创建
//	func(...) (S, err)  构造函数，服务类型为第一个返回值
//	*Struct             现成实例，带 `di` 标签的字段会在首次解析时注入
func RegisterAuto(c Container, target any, opts ...Option) (reflect.Type, error) {
	def, err := definitionFor(target)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(def)
	}
	if err := c.Add(def); err != nil {
		return nil, err
	}
	return def.Type, nil
}

func definitionFor(target any) (*ServiceDefinition, error) {
	if typ, ok := target.(reflect.Type); ok {
		return &ServiceDefinition{Type: typ, ImplType: typ}, nil
	}

	v := reflect.ValueOf(target)
	switch v.Kind() {
	case reflect.Func:
		if v.Type().NumOut() == 0 {
			return nil, fmt.Errorf("di: constructor %v returns nothing", v.Type())
		}
		return &ServiceDefinition{Type: v.Type().Out(0), Impl: target, IsFactory: true}, nil
	case reflect.Pointer:
		def := &ServiceDefinition{Type: v.Type(), Impl: target, IsValue: true}
		if !v.IsNil() && v.Elem().Kind() == reflect.Struct {
			def.InjectFields = hasInjectTags(v.Elem().Type())
		}
		return def, nil
	}
	return nil, fmt.Errorf("di: cannot register %T automatically", target)
}

// Register 注册 T。T 为接口时需要配合 Use、WithValue 或 WithFactory 指定实现。
// 重复注册会 panic，在 Binder.Install 中会转换为错误。
func Register[T any](c Container, opts ...Option) {
	typ := TypeOf[T]()
	def := &ServiceDefinition{Type: typ, ImplType: typ}
	for _, opt := range opts {
		opt(def)
	}
	if err := c.Add(def); err != nil {
		panic(fmt.Sprintf("di: failed to register %v: %v", typ, err))
	}
}

func Resolve[T any](c Container) (T, error) {
	return ResolveNamedContext[T](context.Background(), c, "")
}

func ResolveNamed[T any](c Container, name string) (T, error) {
	return ResolveNamedContext[T](context.Background(), c, name)
}

// ResolveContext 携带 ctx 解析，请求作用域等自定义作用域从 ctx 中找到自己的状态
func ResolveContext[T any](ctx context.Context, c Container) (T, error) {
	return ResolveNamedContext[T](ctx, c, "")
}

func ResolveNamedContext[T any](ctx context.Context, c Container, name string) (T, error) {
	var zero T
	val, err := c.GetNamedContext(ctx, TypeOf[T](), name)
	if err != nil || val == nil {
		return zero, err
	}
	t, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, TypeOf[T]())
	}
	return t, nil
}

// MustResolve 解析失败时 panic
func MustResolve[T any](c Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

func hasInjectTags(typ reflect.Type) bool {
	for i := range typ.NumField() {
		if _, ok := typ.Field(i).Tag.Lookup("di"); ok {
			return true
		}
	}
	return false
}
