package di

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// graphBuilder 校验依赖图并给出单例的初始化顺序
type graphBuilder struct {
	definitions map[ServiceKey]*ServiceDefinition
	deps        map[ServiceKey][]ServiceKey
	// scoped 记录依赖链上需要作用域（Scoped 或自定义作用域）的服务
	scoped map[ServiceKey]bool
}

func newGraphBuilder(defs map[ServiceKey]*ServiceDefinition) *graphBuilder {
	return &graphBuilder{
		definitions: defs,
		deps:        make(map[ServiceKey][]ServiceKey, len(defs)),
		scoped:      make(map[ServiceKey]bool, len(defs)),
	}
}

// sortedKeys 固定遍历顺序，使错误信息可复现
func sortedKeys(defs map[ServiceKey]*ServiceDefinition) []ServiceKey {
	keys := make([]ServiceKey, 0, len(defs))
	for key := range defs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// buildOrder 按依赖拓扑排序（依赖在前）。发现环或单例依赖作用域服务时返回错误。
func (g *graphBuilder) buildOrder() ([]ServiceKey, error) {
	keys := sortedKeys(g.definitions)
	for _, key := range keys {
		deps, err := g.inspectDependencies(g.definitions[key])
		if err != nil {
			return nil, fmt.Errorf("di: inspect dependencies of %v: %w", key, err)
		}
		g.deps[key] = deps
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ServiceKey]int, len(keys))
	var (
		order []ServiceKey
		path  []ServiceKey
	)

	var visit func(ServiceKey) error
	visit = func(u ServiceKey) error {
		state[u] = visiting
		path = append(path, u)

		for _, v := range g.deps[u] {
			// 未注册的依赖留到解析时报错
			if _, ok := g.definitions[v]; !ok {
				continue
			}
			switch state[v] {
			case visiting:
				return fmt.Errorf("di: dependency cycle detected: %s", cyclePath(path, v))
			case unvisited:
				if err := visit(v); err != nil {
					return err
				}
			}
		}

		if err := g.checkLifetime(u); err != nil {
			return err
		}

		path = path[:len(path)-1]
		state[u] = done
		order = append(order, u)
		return nil
	}

	for _, key := range keys {
		if state[key] == unvisited {
			if err := visit(key); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// checkLifetime 在 u 的依赖都已访问后调用。
// 瞬态服务继承依赖的作用域需求，单例不能依赖需要作用域的服务。
func (g *graphBuilder) checkLifetime(u ServiceKey) error {
	def := g.definitions[u]
	switch def.Scope {
	case ScopeScoped, ScopeCustom:
		g.scoped[u] = true
		return nil
	}

	for _, v := range g.deps[u] {
		if !g.scoped[v] {
			continue
		}
		if def.Scope == ScopeSingleton {
			return fmt.Errorf("di: singleton %v depends on %v, which only lives inside a scope", u, v)
		}
		g.scoped[u] = true
	}
	return nil
}

func cyclePath(path []ServiceKey, back ServiceKey) string {
	i := len(path) - 1
	for i > 0 && path[i] != back {
		i--
	}
	parts := make([]string, 0, len(path)-i+1)
	for _, key := range path[i:] {
		parts = append(parts, key.String())
	}
	parts = append(parts, back.String())
	return strings.Join(parts, " -> ")
}

// inspectDependencies 返回服务依赖的类型列表。
// 它还会填充 ServiceDefinition.Schema。
func (g *graphBuilder) inspectDependencies(def *ServiceDefinition) ([]ServiceKey, error) {
	def.Schema = &InjectionSchema{}

	if def.Provider != nil {
		return nil, nil
	}

	if def.IsValue {
		if def.InjectFields && def.Impl != nil {
			return analyzeStruct(reflect.TypeOf(def.Impl), def.Schema)
		}
		return nil, nil
	}

	if def.IsFactory {
		return analyzeFunction(def.Impl, def.Schema)
	}

	if def.Impl != nil && reflect.TypeOf(def.Impl).Kind() == reflect.Func {
		return analyzeFunction(def.Impl, def.Schema)
	}

	if def.ImplType == nil {
		return nil, fmt.Errorf("no implementation for %v", def.Type)
	}
	return analyzeStruct(def.ImplType, def.Schema)
}

func analyzeFunction(fn any, schema *InjectionSchema) ([]ServiceKey, error) {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("expected function, got %v", fnType)
	}

	var deps []ServiceKey
	for i := 0; i < fnType.NumIn(); i++ {
		argType := fnType.In(i)
		// 函数参数不支持命名注入
		deps = append(deps, ServiceKey{Type: argType})
		schema.Args = append(schema.Args, argType)
	}
	return deps, nil
}

func analyzeStruct(typ reflect.Type, schema *InjectionSchema) ([]ServiceKey, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return nil, nil
	}

	var deps []ServiceKey
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}

		name, isOptional := parseTag(tagValue)

		schema.Fields = append(schema.Fields, FieldInjection{
			Index:       i,
			Name:        field.Name,
			Type:        field.Type,
			Optional:    isOptional,
			ServiceName: name,
		})

		if isOptional {
			continue // 不在图中强制执行可选依赖
		}
		deps = append(deps, ServiceKey{Type: field.Type, Name: name})
	}
	return deps, nil
}

// parseTag 解析 tag: "name,option1,option2"。"?" 与 "optional" 表示可选依赖。
func parseTag(tagValue string) (string, bool) {
	parts := strings.Split(tagValue, ",")
	name := strings.TrimSpace(parts[0])
	isOptional := false

	if name == "?" || name == "optional" {
		name = ""
		isOptional = true
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "optional" || part == "?" {
			isOptional = true
		}
	}
	return name, isOptional
}
