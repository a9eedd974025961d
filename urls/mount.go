package urls

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Handler 可直接挂载的回调对象
type Handler interface {
	Handle(c *gin.Context)
}

// HandlerOf 将回调转换为 gin.HandlerFunc，不支持的回调返回 false
func HandlerOf(cb any) (gin.HandlerFunc, bool) {
	switch h := cb.(type) {
	case gin.HandlerFunc:
		return h, true
	case func(*gin.Context):
		return h, true
	case Handler:
		return h.Handle, true
	}
	return nil, false
}

// MountOption 挂载选项
type MountOption func(*mountOptions)

type mountOptions struct {
	middleware []func(cb any) []gin.HandlerFunc
}

// WithRouteMiddleware 按回调为每条路由追加中间件
func WithRouteMiddleware(fn func(cb any) []gin.HandlerFunc) MountOption {
	return func(o *mountOptions) {
		o.middleware = append(o.middleware, fn)
	}
}

// Mount 将路由树的所有路由以全部 HTTP 方法注册到 router
func Mount(router gin.IRoutes, r *Resolver, opts ...MountOption) error {
	o := &mountOptions{}
	for _, opt := range opts {
		opt(o)
	}

	for _, route := range r.Routes() {
		handler, ok := HandlerOf(route.Callback)
		if !ok {
			return fmt.Errorf("urls: route %s: callback %T cannot handle requests, was the tree processed by the injector?", route.Path, route.Callback)
		}

		var chain []gin.HandlerFunc
		for _, mw := range o.middleware {
			chain = append(chain, mw(route.Callback)...)
		}
		chain = append(chain, handler)

		router.Any(route.Path, chain...)
	}
	return nil
}
