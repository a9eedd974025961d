// Package rest 提供 REST 风格的视图：APIView 与按动作映射分发的 ViewSet。
package rest

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/views"
)

// APIView REST 视图基类
type APIView struct {
	views.View
}

// AsAPIView 与 views.AsView 相同，但记录类引用并跳过 CSRF 校验
func AsAPIView(class any, initkwargs map[string]any) *views.ViewFunc {
	f := views.AsView(class, initkwargs)
	f.Cls = class
	f.CSRFExempt = true
	return f
}

// Response 以 JSON 渲染响应
func Response(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// ViewSet 视图集基类，HTTP 方法通过 ActionMap 映射到动作方法
type ViewSet struct {
	views.View
	ActionMap map[string]string
	Action    string

	handlers map[string]gin.HandlerFunc
}

// SetHandler 将 HTTP 方法绑定到处理函数
func (v *ViewSet) SetHandler(method string, h gin.HandlerFunc) {
	if v.handlers == nil {
		v.handlers = make(map[string]gin.HandlerFunc)
	}
	v.handlers[strings.ToUpper(method)] = h
}

// HandlerFor 实现 views.HandlerSource
func (v *ViewSet) HandlerFor(method string) (gin.HandlerFunc, bool) {
	h, ok := v.handlers[strings.ToUpper(method)]
	return h, ok
}

// SetActionMap 设置动作映射与当前请求的动作
func (v *ViewSet) SetActionMap(actions map[string]string, method string) {
	v.ActionMap = actions
	v.Action = actions[strings.ToLower(method)]
}

// Dispatch 按绑定的处理函数分发
func (v *ViewSet) Dispatch(c *gin.Context) {
	views.Dispatch(v, c)
}

// ViewSetter 视图集实例需要实现的方法，嵌入 ViewSet 即可获得
type ViewSetter interface {
	views.Viewer
	views.HandlerSource
	SetHandler(method string, h gin.HandlerFunc)
	SetActionMap(actions map[string]string, method string)
}

// ViewSetFunc AsViewSet 的结果
type ViewSetFunc struct {
	Cls        any
	Actions    map[string]string
	InitKwargs map[string]any
	CSRFExempt bool
	Handler    gin.HandlerFunc
}

// Handle 实现 urls.Handler
func (f *ViewSetFunc) Handle(c *gin.Context) {
	f.Handler(c)
}

// IsCSRFExempt 是否跳过 CSRF 校验
func (f *ViewSetFunc) IsCSRFExempt() bool {
	return f.CSRFExempt
}

// AsViewSet 创建视图集入口。actions 将小写 HTTP 方法映射到动作名，例如 {"get": "list"}。
func AsViewSet(class any, actions map[string]string, initkwargs map[string]any) *ViewSetFunc {
	if len(actions) == 0 {
		panic("rest: the actions argument must be provided when calling AsViewSet")
	}
	typ := views.ClassType(class)
	if typ == nil {
		panic(fmt.Sprintf("rest: %T is not a viewset class", class))
	}
	for key := range initkwargs {
		if !di.HasField(typ, key) {
			panic(fmt.Sprintf("rest: %v received an invalid keyword %q", typ, key))
		}
	}
	if initkwargs == nil {
		initkwargs = map[string]any{}
	}

	f := &ViewSetFunc{
		Cls:        class,
		Actions:    actions,
		InitKwargs: initkwargs,
		CSRFExempt: true,
	}
	f.Handler = func(c *gin.Context) {
		instance, err := views.NewInstance(class)
		if err == nil {
			err = di.SetFields(instance, initkwargs)
		}
		if err == nil {
			err = Serve(instance, CopyActions(actions), c)
		}
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
		}
	}
	return f
}

// CopyActions 复制动作映射，只有 get 时 head 使用同一个动作
func CopyActions(actions map[string]string) map[string]string {
	out := make(map[string]string, len(actions)+1)
	for method, action := range actions {
		out[strings.ToLower(method)] = action
	}
	if get, ok := out["get"]; ok {
		if _, ok := out["head"]; !ok {
			out["head"] = get
		}
	}
	return out
}

// Serve 绑定动作、执行 Setup 并分发
func Serve(instance any, actions map[string]string, c *gin.Context) error {
	vs, ok := instance.(ViewSetter)
	if !ok {
		return fmt.Errorf("rest: %T does not embed rest.ViewSet", instance)
	}

	val := reflect.ValueOf(instance)
	for method, action := range actions {
		m := val.MethodByName(ActionMethodName(action))
		if !m.IsValid() {
			return fmt.Errorf("rest: %T has no action %q", instance, action)
		}
		h, ok := m.Interface().(func(*gin.Context))
		if !ok {
			return fmt.Errorf("rest: action %q of %T must be func(*gin.Context)", action, instance)
		}
		vs.SetHandler(method, h)
	}

	vs.SetActionMap(actions, c.Request.Method)
	vs.Setup(c, c.Params)
	if vs.Request() == nil {
		return &views.SetupError{Class: reflect.Indirect(val).Type().Name()}
	}

	views.Dispatch(instance, c)
	return nil
}

// ActionMethodName 将动作名转换为方法名，例如 partial_update -> PartialUpdate
func ActionMethodName(action string) string {
	var b strings.Builder
	for _, part := range strings.Split(action, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
