// Package views 提供基于类型的视图：View 基类、AsView 工厂与按 HTTP 方法分发。
package views

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/di"
)

// Viewer 视图实例需要实现的生命周期方法，嵌入 View 即可获得
type Viewer interface {
	Setup(c *gin.Context, params gin.Params)
	Request() *gin.Context
	Params() gin.Params
}

// View 视图基类
type View struct {
	request *gin.Context
	params  gin.Params
}

// Setup 保存当前请求与路由参数，重写时必须调用 View.Setup
func (v *View) Setup(c *gin.Context, params gin.Params) {
	v.request = c
	v.params = params
}

// Request 当前请求
func (v *View) Request() *gin.Context {
	return v.request
}

// Params 路由参数
func (v *View) Params() gin.Params {
	return v.params
}

// ViewFunc AsView 的结果，保留视图类与初始化参数供后续处理
type ViewFunc struct {
	// ViewClass 构造函数或 reflect.Type
	ViewClass any
	// InitKwargs 按字段名写入实例
	InitKwargs map[string]any
	// Cls REST 视图的类引用
	Cls        any
	CSRFExempt bool
	Handler    gin.HandlerFunc
}

// Handle 实现 urls.Handler
func (f *ViewFunc) Handle(c *gin.Context) {
	f.Handler(c)
}

// IsCSRFExempt 是否跳过 CSRF 校验
func (f *ViewFunc) IsCSRFExempt() bool {
	return f.CSRFExempt
}

// SetupError 重写 Setup 后未调用 View.Setup
type SetupError struct {
	Class string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s instance has no 'request' attribute. Did you override Setup() and forget to call View.Setup()?", e.Class)
}

// AsView 创建视图入口。每个请求都会构造新的实例，写入 initkwargs，
// 然后执行 Setup 与 Dispatch。initkwargs 中的键必须是视图的导出字段。
func AsView(class any, initkwargs map[string]any) *ViewFunc {
	typ := ClassType(class)
	if typ == nil {
		panic(fmt.Sprintf("views: %T is not a view class", class))
	}
	for key := range initkwargs {
		if !di.HasField(typ, key) {
			panic(fmt.Sprintf("views: %v received an invalid keyword %q", typ, key))
		}
	}
	if initkwargs == nil {
		initkwargs = map[string]any{}
	}

	f := &ViewFunc{ViewClass: class, InitKwargs: initkwargs}
	f.Handler = func(c *gin.Context) {
		instance, err := NewInstance(class)
		if err == nil {
			err = di.SetFields(instance, initkwargs)
		}
		if err == nil {
			err = Serve(instance, c)
		}
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
		}
	}
	return f
}

// ClassType 返回视图类对应的实例类型
func ClassType(class any) reflect.Type {
	switch t := class.(type) {
	case reflect.Type:
		return t
	case nil:
		return nil
	}
	fnType := reflect.TypeOf(class)
	if fnType.Kind() != reflect.Func || fnType.NumOut() == 0 {
		return nil
	}
	return fnType.Out(0)
}

// NewInstance 不经容器创建实例：reflect.Type 使用零值，构造函数必须无参数
func NewInstance(class any) (any, error) {
	if typ, ok := class.(reflect.Type); ok {
		if typ.Kind() == reflect.Ptr {
			return reflect.New(typ.Elem()).Interface(), nil
		}
		return reflect.New(typ).Interface(), nil
	}

	fn := reflect.ValueOf(class)
	if fn.Kind() != reflect.Func || fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("views: %T needs injected arguments, process the URL tree first", class)
	}

	out := fn.Call(nil)
	if len(out) > 1 {
		if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
			return nil, err
		}
	}
	return out[0].Interface(), nil
}

// Serve 执行 Setup，校验请求已保存，然后分发
func Serve(instance any, c *gin.Context) error {
	v, ok := instance.(Viewer)
	if !ok {
		return fmt.Errorf("views: %T does not embed views.View", instance)
	}

	v.Setup(c, c.Params)
	if v.Request() == nil {
		return &SetupError{Class: className(instance)}
	}

	Dispatch(instance, c)
	return nil
}

// HandlerSource 允许实例提供按方法绑定的处理函数（例如 ViewSet）
type HandlerSource interface {
	HandlerFor(method string) (gin.HandlerFunc, bool)
}

var methodNames = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodHead, http.MethodOptions,
}

// Dispatch 调用与请求方法同名的方法（GET -> Get），签名必须为 func(*gin.Context)。
// HEAD 在没有 Head 时使用 Get，OPTIONS 默认返回 Allow，其余情况返回 405。
func Dispatch(instance any, c *gin.Context) {
	method := c.Request.Method
	if handler, ok := lookupHandler(instance, method); ok {
		handler(c)
		return
	}

	c.Header("Allow", strings.Join(allowedMethods(instance), ", "))
	if method == http.MethodOptions {
		c.Status(http.StatusOK)
		return
	}
	c.AbortWithStatus(http.StatusMethodNotAllowed)
}

func lookupHandler(instance any, method string) (gin.HandlerFunc, bool) {
	if src, ok := instance.(HandlerSource); ok {
		if h, ok := src.HandlerFor(method); ok {
			return h, true
		}
		if method == http.MethodHead {
			if h, ok := src.HandlerFor(http.MethodGet); ok {
				return h, true
			}
		}
	}

	if h, ok := methodHandler(instance, MethodName(method)); ok {
		return h, true
	}
	if method == http.MethodHead {
		return methodHandler(instance, "Get")
	}
	return nil, false
}

func methodHandler(instance any, name string) (gin.HandlerFunc, bool) {
	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return nil, false
	}
	h, ok := m.Interface().(func(*gin.Context))
	return h, ok
}

func allowedMethods(instance any) []string {
	var allowed []string
	for _, method := range methodNames {
		if _, ok := lookupHandler(instance, method); ok || method == http.MethodOptions {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// MethodName 返回 HTTP 方法对应的 Go 方法名，例如 DELETE -> Delete
func MethodName(method string) string {
	if method == "" {
		return ""
	}
	lower := strings.ToLower(method)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func className(instance any) string {
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
