package di

import (
	"context"
	"fmt"
	"reflect"
)

// resolver 按 ServiceDefinition 与预先分析的 Schema 创建实例，依赖经 c 解析
type resolver struct{}

func newResolver() *resolver { return &resolver{} }

func (r *resolver) createInstance(ctx context.Context, c Container, def *ServiceDefinition) (any, error) {
	switch {
	case def.Provider != nil:
		return def.Provider(ctx)
	case def.IsValue:
		return r.prepareValue(ctx, c, def)
	case def.IsFactory, def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func:
		return r.invokeFunction(ctx, c, def.Impl, def.Schema)
	}
	return r.createStruct(ctx, c, def.ImplType, def.Schema)
}

func (r *resolver) prepareValue(ctx context.Context, c Container, def *ServiceDefinition) (any, error) {
	if !def.InjectFields || def.Impl == nil {
		return def.Impl, nil
	}
	v := reflect.ValueOf(def.Impl)
	if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
		if err := r.injectFields(ctx, c, v.Elem(), def.Schema); err != nil {
			return nil, err
		}
	}
	return def.Impl, nil
}

func (r *resolver) invokeFunction(ctx context.Context, c Container, fn any, schema *InjectionSchema) (any, error) {
	args := make([]reflect.Value, len(schema.Args))
	for i, typ := range schema.Args {
		v, err := resolveValue(ctx, c, typ, "")
		if err != nil {
			return nil, fmt.Errorf("argument %d (%v): %w", i, typ, err)
		}
		args[i] = v
	}
	return firstResult(reflect.ValueOf(fn).Call(args))
}

// createStruct 分配 implType（指针则分配其元素）并注入 `di` 字段
func (r *resolver) createStruct(ctx context.Context, c Container, implType reflect.Type, schema *InjectionSchema) (any, error) {
	isPtr := implType.Kind() == reflect.Pointer
	elem := implType
	if isPtr {
		elem = implType.Elem()
	}
	ptr := reflect.New(elem)
	if err := r.injectFields(ctx, c, ptr.Elem(), schema); err != nil {
		return nil, err
	}
	if isPtr {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

func (r *resolver) injectFields(ctx context.Context, c Container, target reflect.Value, schema *InjectionSchema) error {
	for _, f := range schema.Fields {
		v, err := resolveValue(ctx, c, f.Type, f.ServiceName)
		switch {
		case err == nil:
			target.Field(f.Index).Set(v)
		case !f.Optional:
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// resolveValue 解析依赖并转换为可赋给 typ 的值。
// 解析出 nil（例如请求之外的 *gin.Context）时返回 typ 的零值。
func resolveValue(ctx context.Context, c Container, typ reflect.Type, name string) (reflect.Value, error) {
	instance, err := c.GetNamedContext(ctx, typ, name)
	if err != nil {
		return reflect.Value{}, err
	}
	if instance == nil {
		return reflect.Zero(typ), nil
	}

	v := reflect.ValueOf(instance)
	switch {
	case v.Type().AssignableTo(typ):
		return v, nil
	case v.Type().ConvertibleTo(typ):
		return v.Convert(typ), nil
	}
	return reflect.Value{}, fmt.Errorf("di: resolved %T is not assignable to %v", instance, typ)
}

// firstResult 取第一个返回值；最后一个返回值是非空 error 时返回它
func firstResult(results []reflect.Value) (any, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("di: factory/constructor returned no values")
	}
	if n := len(results); n > 1 {
		if last := results[n-1]; last.Type().Implements(errorType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	return results[0].Interface(), nil
}
