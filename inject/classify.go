package inject

import (
	"fmt"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/rest"
	"github.com/gocrud/ginject/views"
)

// Kind 回调的分类结果
type Kind int

const (
	// KindOpaque 无法识别的回调，原样返回
	KindOpaque Kind = iota
	// KindBoundMethod 绑定到接收者的方法
	KindBoundMethod
	// KindAlreadyInjectable 已通过 Inject 标记
	KindAlreadyInjectable
	// KindPlainFunction 首参数为 *gin.Context 且还有其他参数的函数
	KindPlainFunction
	// KindClassViewFactory views.AsView 的结果
	KindClassViewFactory
	// KindViewSetFactory rest.AsViewSet 的结果
	KindViewSetFactory
)

func (k Kind) String() string {
	switch k {
	case KindBoundMethod:
		return "bound_method"
	case KindAlreadyInjectable:
		return "injectable"
	case KindPlainFunction:
		return "function"
	case KindClassViewFactory:
		return "class_view"
	case KindViewSetFactory:
		return "viewset"
	default:
		return "opaque"
	}
}

var ginContextType = reflect.TypeOf((*gin.Context)(nil))

// BoundMethod 接收者上按名称引用的方法
type BoundMethod struct {
	Recv any
	Name string
}

// Method 引用 recv 的导出方法，方法不存在时 panic
func Method(recv any, name string) *BoundMethod {
	if !reflect.ValueOf(recv).MethodByName(name).IsValid() {
		panic(fmt.Sprintf("inject: %T has no method %s", recv, name))
	}
	return &BoundMethod{Recv: recv, Name: name}
}

// Func 返回绑定后的函数值
func (m *BoundMethod) Func() any {
	return reflect.ValueOf(m.Recv).MethodByName(m.Name).Interface()
}

// Injectable 声明了注入依赖的函数
type Injectable struct {
	Fn any

	passthrough int
}

// Inject 标记 fn 需要注入。首参数为 *gin.Context 时由调用方传入，其余参数按类型从容器解析。
func Inject(fn any) *Injectable {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.IsVariadic() {
		panic(fmt.Sprintf("inject: %T is not an injectable function", fn))
	}

	passthrough := 0
	if t.NumIn() > 0 && t.In(0) == ginContextType {
		passthrough = 1
	}
	return &Injectable{Fn: fn, passthrough: passthrough}
}

// Bindings 需要容器提供的参数类型
func (i *Injectable) Bindings() []reflect.Type {
	return di.Bindings(i.Fn, i.passthrough)
}

// Classify 按顺序判断回调的种类
func Classify(fn any) Kind {
	switch v := fn.(type) {
	case nil:
		return KindOpaque
	case *BoundMethod:
		return KindBoundMethod
	case *Injectable:
		return KindAlreadyInjectable
	case *views.ViewFunc:
		if v.InitKwargs == nil {
			return KindOpaque
		}
		return KindClassViewFactory
	case *rest.ViewSetFunc:
		return KindViewSetFactory
	case gin.HandlerFunc, func(*gin.Context):
		return KindOpaque
	}

	if introspectable(reflect.TypeOf(fn)) {
		return KindPlainFunction
	}
	return KindOpaque
}

func introspectable(t reflect.Type) bool {
	return t.Kind() == reflect.Func &&
		!t.IsVariadic() &&
		t.NumIn() >= 2 &&
		t.In(0) == ginContextType
}
