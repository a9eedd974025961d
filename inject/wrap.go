package inject

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/metrics"
	"github.com/gocrud/ginject/rest"
	"github.com/gocrud/ginject/views"
)

// WrapFunc 将回调改写为使用容器 c 解析依赖的版本，无法识别的回调原样返回。
// 改写后的函数保留原有的 *gin.Context 参数与返回值。
func WrapFunc(fn any, c di.Container) any {
	switch Classify(fn) {
	case KindBoundMethod:
		return WrapFunc(fn.(*BoundMethod).Func(), c)
	case KindAlreadyInjectable:
		return wrapInjectable(fn.(*Injectable), c)
	case KindPlainFunction:
		return WrapFunc(Inject(fn), c)
	case KindClassViewFactory:
		return wrapClassView(fn.(*views.ViewFunc), c)
	case KindViewSetFactory:
		return wrapViewSet(fn.(*rest.ViewSetFunc), c)
	default:
		return fn
	}
}

func wrapInjectable(inj *Injectable, c di.Container) any {
	fnVal := reflect.ValueOf(inj.Fn)
	fnType := fnVal.Type()

	in := make([]reflect.Type, inj.passthrough)
	for i := range in {
		in[i] = fnType.In(i)
	}
	out := make([]reflect.Type, fnType.NumOut())
	for i := range out {
		out[i] = fnType.Out(i)
	}

	adapter := reflect.MakeFunc(reflect.FuncOf(in, out, false), func(args []reflect.Value) []reflect.Value {
		var gc *gin.Context
		if inj.passthrough > 0 {
			gc, _ = args[0].Interface().(*gin.Context)
		}

		results, err := di.CallValues(requestContext(gc), c, fnVal, args)
		if err == nil {
			return results
		}

		metrics.InjectionErrorsTotal.Inc()
		if gc == nil {
			panic(fmt.Errorf("inject: %w", err))
		}
		gc.AbortWithError(http.StatusInternalServerError, fmt.Errorf("inject: %w", err))

		zeros := make([]reflect.Value, len(out))
		for i, t := range out {
			zeros[i] = reflect.Zero(t)
		}
		return zeros
	})
	return adapter.Interface()
}

func wrapClassView(v *views.ViewFunc, c di.Container) *views.ViewFunc {
	class, initkwargs := v.ViewClass, v.InitKwargs

	wrapped := &views.ViewFunc{
		ViewClass:  class,
		InitKwargs: initkwargs,
		Cls:        v.Cls,
		CSRFExempt: v.CSRFExempt || v.Cls != nil,
	}
	wrapped.Handler = func(gc *gin.Context) {
		instance, err := di.CreateObject(requestContext(gc), c, class, initkwargs)
		if err == nil {
			err = views.Serve(instance, gc)
		}
		if err != nil {
			gc.AbortWithError(http.StatusInternalServerError, err)
		}
	}
	return wrapped
}

func wrapViewSet(v *rest.ViewSetFunc, c di.Container) *rest.ViewSetFunc {
	class, actions, initkwargs := v.Cls, v.Actions, v.InitKwargs

	wrapped := &rest.ViewSetFunc{
		Cls:        class,
		Actions:    actions,
		InitKwargs: initkwargs,
		CSRFExempt: true,
	}
	wrapped.Handler = func(gc *gin.Context) {
		instance, err := di.CreateObject(requestContext(gc), c, class, initkwargs)
		if err == nil {
			err = rest.Serve(instance, rest.CopyActions(actions), gc)
		}
		if err != nil {
			gc.AbortWithError(http.StatusInternalServerError, err)
		}
	}
	return wrapped
}

// requestContext 返回请求上的 context，其中带有中间件准备的请求作用域
func requestContext(gc *gin.Context) context.Context {
	if gc != nil && gc.Request != nil {
		return gc.Request.Context()
	}
	return context.Background()
}
