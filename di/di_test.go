package di_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gocrud/ginject/di"
)

type ServiceA struct {
	Val int
}

type ServiceB struct {
	A *ServiceA `di:""`
}

type Greeter interface {
	Greet() string
}

type englishGreeter struct{}

func (g *englishGreeter) Greet() string { return "hello" }

type Database struct {
	DSN string
}

type ServiceWithNamedDB struct {
	Primary *Database `di:"primary"`
	Replica *Database `di:"replica"`
}

type ServiceWithOptional struct {
	Required *Database `di:"primary"`
	Missing  *Database `di:"missing,?"`
	Absent   *Database `di:"optional"`
}

// AutoServiceA 用于测试构造函数注册
type AutoServiceA struct {
	Val string
}

func NewAutoServiceA() *AutoServiceA {
	return &AutoServiceA{Val: "auto-A"}
}

// AutoServiceB 依赖 AutoServiceA
type AutoServiceB struct {
	A *AutoServiceA
}

func NewAutoServiceB(a *AutoServiceA) *AutoServiceB {
	return &AutoServiceB{A: a}
}

// AutoServiceWithTag 预先创建的实例，字段通过标签注入
type AutoServiceWithTag struct {
	B    *AutoServiceB `di:""`
	Data string
}

func TestDI(t *testing.T) {
	c := di.NewContainer()

	di.Register[int](c, di.WithValue(100))
	di.Register[*ServiceA](c, di.WithFactory(func(val int) *ServiceA {
		return &ServiceA{Val: val}
	}))
	di.Register[*ServiceB](c, di.WithTransient())
	di.Register[Greeter](c, di.Use[*englishGreeter]())

	if err := c.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	b, err := di.Resolve[*ServiceB](c)
	if err != nil {
		t.Fatalf("Resolve ServiceB failed: %v", err)
	}
	if b.A == nil || b.A.Val != 100 {
		t.Fatalf("field injection failed: %+v", b.A)
	}

	b2, _ := di.Resolve[*ServiceB](c)
	if b == b2 {
		t.Error("transient service resolved to the same instance twice")
	}
	if b.A != b2.A {
		t.Error("singleton dependency should be shared")
	}

	g, err := di.Resolve[Greeter](c)
	if err != nil {
		t.Fatalf("Resolve Greeter failed: %v", err)
	}
	if g.Greet() != "hello" {
		t.Errorf("expected hello, got %q", g.Greet())
	}
}

func TestResolveMissing(t *testing.T) {
	c := di.NewContainer()
	if _, err := di.Resolve[*ServiceA](c); !errors.Is(err, di.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}

	if err := c.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := di.Resolve[*ServiceA](c); !errors.Is(err, di.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddAfterBuild(t *testing.T) {
	c := di.NewContainer()
	if err := c.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := di.RegisterAuto(c, NewAutoServiceA); err == nil {
		t.Error("expected error when registering after build")
	}
}

func TestCycleDetection(t *testing.T) {
	type X struct{}
	type Y struct{}
	c := di.NewContainer()
	di.Register[*X](c, di.WithFactory(func(*Y) *X { return &X{} }))
	di.Register[*Y](c, di.WithFactory(func(*X) *Y { return &Y{} }))

	err := c.Build()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "*di_test.X -> *di_test.Y -> *di_test.X") {
		t.Errorf("cycle path missing from %q", err)
	}
}

func TestSingletonDependsOnScoped(t *testing.T) {
	type Request struct{}
	type Handler struct{}
	type Service struct{}

	c := di.NewContainer()
	di.Register[*Request](c, di.WithScoped(), di.WithFactory(func() *Request { return &Request{} }))
	di.Register[*Handler](c, di.WithTransient(), di.WithFactory(func(*Request) *Handler { return &Handler{} }))
	di.Register[*Service](c, di.WithFactory(func(*Handler) *Service { return &Service{} }))

	err := c.Build()
	if err == nil {
		t.Fatal("expected lifetime error")
	}
	if !strings.Contains(err.Error(), "singleton *di_test.Service depends on *di_test.Handler") {
		t.Errorf("unexpected error %q", err)
	}

	c = di.NewContainer()
	di.Register[*Request](c, di.WithScoped(), di.WithFactory(func() *Request { return &Request{} }))
	di.Register[*Handler](c, di.WithTransient(), di.WithFactory(func(*Request) *Handler { return &Handler{} }))
	if err := c.Build(); err != nil {
		t.Fatalf("transient over scoped should build: %v", err)
	}
}

func TestScope(t *testing.T) {
	c := di.NewContainer()

	type ScopedService struct {
		ID int
	}

	counter := 0
	di.Register[*ScopedService](c, di.WithScoped(), di.WithFactory(func() *ScopedService {
		counter++
		return &ScopedService{ID: counter}
	}))

	if err := c.Build(); err != nil {
		t.Fatal(err)
	}

	if _, err := di.Resolve[*ScopedService](c); err == nil {
		t.Error("scoped service must not resolve from the root container")
	}

	scope1 := c.CreateScope()
	s1a, _ := di.Resolve[*ScopedService](scope1)
	s1b, _ := di.Resolve[*ScopedService](scope1)
	if s1a != s1b {
		t.Errorf("expected same instance in scope 1, got %d and %d", s1a.ID, s1b.ID)
	}

	scope2 := c.CreateScope()
	s2a, _ := di.Resolve[*ScopedService](scope2)
	if s1a == s2a {
		t.Error("expected different instances across scopes")
	}
}

type closeTracker struct {
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestScopeDisposeClosesInstances(t *testing.T) {
	c := di.NewContainer()
	di.Register[*closeTracker](c, di.WithScoped())
	if err := c.Build(); err != nil {
		t.Fatal(err)
	}

	scope := c.CreateScope()
	tracker, err := di.Resolve[*closeTracker](scope)
	if err != nil {
		t.Fatal(err)
	}
	if err := scope.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !tracker.closed {
		t.Error("Dispose should close scoped io.Closer instances")
	}
}

// mapScope 用于测试的自定义作用域：按 ctx 中的 map 缓存实例
type mapScope struct{}

type cacheKey struct{}

func (mapScope) Get(ctx context.Context, key di.ServiceKey, provider di.Provider) (any, error) {
	cache, ok := ctx.Value(cacheKey{}).(map[di.ServiceKey]any)
	if !ok {
		return nil, errors.New("no cache on context")
	}
	if v, ok := cache[key]; ok {
		return v, nil
	}
	v, err := provider(ctx)
	if err != nil {
		return nil, err
	}
	cache[key] = v
	return v, nil
}

func TestCustomScope(t *testing.T) {
	type Marker struct{ N int }

	n := 0
	c := di.NewContainer()
	di.Register[*Marker](c, di.WithCustomScope(mapScope{}), di.WithFactory(func() *Marker {
		n++
		return &Marker{N: n}
	}))
	if err := c.Build(); err != nil {
		t.Fatal(err)
	}

	ctx1 := context.WithValue(context.Background(), cacheKey{}, map[di.ServiceKey]any{})
	a, _ := di.ResolveContext[*Marker](ctx1, c)
	b, _ := di.ResolveContext[*Marker](ctx1, c)
	if a != b {
		t.Error("custom scope should return the cached instance")
	}

	ctx2 := context.WithValue(context.Background(), cacheKey{}, map[di.ServiceKey]any{})
	d, _ := di.ResolveContext[*Marker](ctx2, c)
	if d == a {
		t.Error("a new cache must produce a new instance")
	}

	if _, err := di.Resolve[*Marker](c); err == nil {
		t.Error("expected scope error without a cache on the context")
	}
}

func TestCustomScopeRequired(t *testing.T) {
	c := di.NewContainer()
	err := c.Add(&di.ServiceDefinition{Type: di.TypeOf[*ServiceA](), Scope: di.ScopeCustom})
	if err == nil {
		t.Error("expected error for custom scope without implementation")
	}
}

func TestRegisterAuto(t *testing.T) {
	c := di.NewContainer()

	typA, err := di.RegisterAuto(c, NewAutoServiceA)
	if err != nil {
		t.Fatalf("Failed to auto register A: %v", err)
	}
	if typA != reflect.TypeOf(&AutoServiceA{}) {
		t.Errorf("Unexpected return type for A: %v", typA)
	}

	if _, err := di.RegisterAuto(c, NewAutoServiceB); err != nil {
		t.Fatalf("Failed to auto register B: %v", err)
	}

	// 带 Tag 的实例指针会自动开启字段注入
	instance := &AutoServiceWithTag{Data: "manual-data"}
	if _, err := di.RegisterAuto(c, instance); err != nil {
		t.Fatalf("Failed to auto register tagged instance: %v", err)
	}

	type AutoServiceC struct {
		Val string
	}
	if _, err := di.RegisterAuto(c, reflect.TypeOf(&AutoServiceC{})); err != nil {
		t.Fatalf("Failed to auto register type: %v", err)
	}

	if _, err := di.RegisterAuto(c, &AutoServiceA{}); err == nil {
		t.Error("expected duplicate registration error")
	}

	if err := c.Build(); err != nil {
		t.Fatalf("Container build failed: %v", err)
	}

	svcB, err := di.Resolve[*AutoServiceB](c)
	if err != nil {
		t.Fatalf("Resolve B failed: %v", err)
	}
	if svcB.A == nil || svcB.A.Val != "auto-A" {
		t.Error("constructor injection for B failed")
	}

	svcTag, err := di.Resolve[*AutoServiceWithTag](c)
	if err != nil {
		t.Fatalf("Resolve tagged instance failed: %v", err)
	}
	if svcTag != instance || svcTag.Data != "manual-data" {
		t.Error("registered instance should be returned as-is")
	}
	if svcTag.B == nil || svcTag.B.A.Val != "auto-A" {
		t.Error("field injection for tagged instance failed")
	}
}

func TestNamedInjection(t *testing.T) {
	c := di.NewContainer()

	di.Register[*Database](c, di.WithName("primary"), di.WithValue(&Database{DSN: "primary_dsn"}))
	di.Register[*Database](c, di.WithName("replica"), di.WithValue(&Database{DSN: "replica_dsn"}))
	di.Register[*ServiceWithNamedDB](c)
	di.Register[*ServiceWithOptional](c)

	if err := c.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	svc, err := di.Resolve[*ServiceWithNamedDB](c)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if svc.Primary.DSN != "primary_dsn" || svc.Replica.DSN != "replica_dsn" {
		t.Errorf("named injection mixed up: %+v", svc)
	}

	opt, err := di.Resolve[*ServiceWithOptional](c)
	if err != nil {
		t.Fatalf("Resolve optional failed: %v", err)
	}
	if opt.Required == nil || opt.Missing != nil || opt.Absent != nil {
		t.Errorf("optional injection failed: %+v", opt)
	}

	if _, err := di.ResolveNamed[*Database](c, "missing"); err == nil {
		t.Error("expected error for missing named service")
	}
}

type ctxKey struct{}

func TestWithProvider(t *testing.T) {
	c := di.NewContainer()
	di.Register[string](c, di.WithTransient(), di.WithProvider(func(ctx context.Context) (any, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	}))
	if err := c.Build(); err != nil {
		t.Fatal(err)
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, "from-ctx")
	got, err := di.ResolveContext[string](ctx, c)
	if err != nil || got != "from-ctx" {
		t.Fatalf("expected value from ctx, got %q, %v", got, err)
	}

	out, err := di.Call(ctx, c, func(s string) string { return s + "!" })
	if err != nil || out[0] != "from-ctx!" {
		t.Fatalf("Call should pass ctx to providers, got %v, %v", out, err)
	}
}
