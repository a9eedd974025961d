package di

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Call 调用 fn：args 按顺序填充前面的参数，其余参数按类型从容器解析。
// 返回 fn 的全部返回值。
func Call(ctx context.Context, c Container, fn any, args ...any) ([]any, error) {
	in := make([]reflect.Value, len(args))
	fnType := reflect.TypeOf(fn)
	for i, arg := range args {
		if arg == nil && fnType != nil && fnType.Kind() == reflect.Func && i < fnType.NumIn() {
			in[i] = reflect.Zero(fnType.In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}

	out, err := CallValues(ctx, c, reflect.ValueOf(fn), in)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// CallValues 是 Call 的反射版本，供 reflect.MakeFunc 生成的适配器使用。
func CallValues(ctx context.Context, c Container, fnVal reflect.Value, args []reflect.Value) ([]reflect.Value, error) {
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("di: call target must be a function, got %v", fnVal.Kind())
	}

	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("di: cannot inject into variadic function %v", fnType)
	}
	if len(args) > fnType.NumIn() {
		return nil, fmt.Errorf("di: %d arguments given to %v", len(args), fnType)
	}

	in := make([]reflect.Value, fnType.NumIn())
	copy(in, args)
	for i := len(args); i < fnType.NumIn(); i++ {
		argVal, err := resolveValue(ctx, c, fnType.In(i), "")
		if err != nil {
			return nil, fmt.Errorf("di: argument %d of %v: %w", i, fnType, err)
		}
		in[i] = argVal
	}

	return fnVal.Call(in), nil
}

// Bindings 返回 fn 中从下标 skip 开始需要容器注入的参数类型。
func Bindings(fn any, skip int) []reflect.Type {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil
	}

	var types []reflect.Type
	for i := skip; i < fnType.NumIn(); i++ {
		types = append(types, fnType.In(i))
	}
	return types
}

// CreateObject 通过容器创建一个新对象，不要求 target 已注册。
//
// target 可以是：
//   - 构造函数：参数从容器解析，最后一个返回值可以是 error；
//   - reflect.Type：结构体（或结构体指针）按 `di` 标签注入字段。
//
// kwargs 按字段名（忽略大小写）写入对象的导出字段。
func CreateObject(ctx context.Context, c Container, target any, kwargs map[string]any) (any, error) {
	var (
		obj any
		err error
	)

	switch t := target.(type) {
	case reflect.Type:
		schema := &InjectionSchema{}
		if _, err := analyzeStruct(t, schema); err != nil {
			return nil, err
		}
		obj, err = newResolver().createStruct(ctx, c, t, schema)
	default:
		fnVal := reflect.ValueOf(target)
		if fnVal.Kind() != reflect.Func {
			return nil, fmt.Errorf("di: cannot create object from %T", target)
		}
		var out []reflect.Value
		out, err = CallValues(ctx, c, fnVal, nil)
		if err == nil {
			obj, err = firstResult(out)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := SetFields(obj, kwargs); err != nil {
		return nil, err
	}
	return obj, nil
}

// SetFields 将 kwargs 写入 obj（结构体指针）的导出字段。
func SetFields(obj any, kwargs map[string]any) error {
	if len(kwargs) == 0 {
		return nil
	}

	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("di: cannot set fields on %T", obj)
	}
	elem := val.Elem()

	for name, value := range kwargs {
		field := lookupField(elem, name)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("di: %v has no settable field %q", elem.Type(), name)
		}

		if value == nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}

		v := reflect.ValueOf(value)
		switch {
		case v.Type().AssignableTo(field.Type()):
			field.Set(v)
		case v.Type().ConvertibleTo(field.Type()):
			field.Set(v.Convert(field.Type()))
		default:
			return fmt.Errorf("di: field %s of %v: cannot use %T", name, elem.Type(), value)
		}
	}
	return nil
}

// HasField 判断 typ（结构体或结构体指针）是否有名为 name 的导出字段。
func HasField(typ reflect.Type, name string) bool {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return false
	}
	if f, ok := typ.FieldByName(name); ok {
		return f.IsExported()
	}
	f, ok := typ.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	return ok && f.IsExported()
}

func lookupField(v reflect.Value, name string) reflect.Value {
	if f := v.FieldByName(name); f.IsValid() {
		return f
	}
	return v.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
}
