package inject

import (
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/metrics"
	"github.com/gocrud/ginject/urls"
)

// Walk 用 replace 替换路由树中所有可达的回调。共享的节点只处理一次，
// 遍历前已展开的 Resolver 会重新展开。
func Walk(r *urls.Resolver, replace func(cb any) any) {
	walk(r, replace, make(map[urls.Node]struct{}))
}

func walk(r *urls.Resolver, replace func(cb any) any, seen map[urls.Node]struct{}) {
	if _, ok := seen[r]; ok {
		return
	}
	seen[r] = struct{}{}

	if r.Callback != nil {
		r.Callback = replace(r.Callback)
	}

	for _, child := range r.Children {
		switch n := child.(type) {
		case *urls.Pattern:
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			if n.Callback != nil {
				n.Callback = replace(n.Callback)
			}
		case *urls.Resolver:
			walk(n, replace, seen)
		}
	}

	if r.Populated() {
		r.Populate()
	}
}

// ProcessResolver 改写路由树中的全部回调
func ProcessResolver(r *urls.Resolver, c di.Container) {
	Walk(r, func(cb any) any {
		return process(cb, c)
	})
}

// ProcessList 返回改写后的新列表，原列表不变
func ProcessList(list []any, c di.Container) []any {
	out := make([]any, len(list))
	for i, cb := range list {
		out[i] = process(cb, c)
	}
	return out
}

func process(cb any, c di.Container) any {
	metrics.WrappedCallbacksTotal.WithLabelValues(Classify(cb).String()).Inc()
	return WrapFunc(cb, c)
}
