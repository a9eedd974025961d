// Package urls 描述路由树：叶子 Pattern 与可嵌套的 Resolver。
// 树在启动时构建，注入框架在挂载前改写其中的回调。
package urls

import (
	"fmt"
	"path"
	"strings"
)

// Node 路由树节点：*Pattern 或 *Resolver
type Node interface {
	node()
}

// Pattern 叶子路由
type Pattern struct {
	Route    string
	Name     string
	Callback any
}

func (*Pattern) node() {}

// Path 创建叶子路由，name 用于 Reverse
func Path(route string, callback any, name ...string) *Pattern {
	p := &Pattern{Route: route, Callback: callback}
	if len(name) > 0 {
		p.Name = name[0]
	}
	return p
}

// Resolver 子路由集合，可选地在自身前缀上挂一个回调
type Resolver struct {
	Prefix   string
	Callback any
	Children []Node

	routes    []Route
	populated bool
}

func (*Resolver) node() {}

// Include 创建子路由集合
func Include(prefix string, nodes ...Node) *Resolver {
	return &Resolver{Prefix: prefix, Children: nodes}
}

// Route 展开后的一条路由
type Route struct {
	Path     string
	Name     string
	Callback any
}

// Populate 重新展开整棵子树并缓存结果
func (r *Resolver) Populate() {
	r.routes = r.collect("")
	r.populated = true
}

// Populated 路由缓存是否已构建
func (r *Resolver) Populated() bool {
	return r.populated
}

// Routes 返回展开后的路由，必要时先 Populate
func (r *Resolver) Routes() []Route {
	if !r.populated {
		r.Populate()
	}
	return r.routes
}

// Reverse 按名称查找路由并依次替换 :param 与 *param 段
func (r *Resolver) Reverse(name string, params ...string) (string, error) {
	for _, route := range r.Routes() {
		if route.Name != name {
			continue
		}

		segments := strings.Split(route.Path, "/")
		next := 0
		for i, seg := range segments {
			if !strings.HasPrefix(seg, ":") && !strings.HasPrefix(seg, "*") {
				continue
			}
			if next >= len(params) {
				return "", fmt.Errorf("urls: route %q needs more than %d parameters", name, len(params))
			}
			segments[i] = params[next]
			next++
		}
		if next != len(params) {
			return "", fmt.Errorf("urls: route %q takes %d parameters, got %d", name, next, len(params))
		}
		return strings.Join(segments, "/"), nil
	}
	return "", fmt.Errorf("urls: no route named %q", name)
}

func (r *Resolver) collect(base string) []Route {
	prefix := joinPaths(base, r.Prefix)

	var routes []Route
	if r.Callback != nil {
		routes = append(routes, Route{Path: prefix, Callback: r.Callback})
	}
	for _, child := range r.Children {
		switch n := child.(type) {
		case *Pattern:
			routes = append(routes, Route{
				Path:     joinPaths(prefix, n.Route),
				Name:     n.Name,
				Callback: n.Callback,
			})
		case *Resolver:
			routes = append(routes, n.collect(prefix)...)
		}
	}
	return routes
}

// joinPaths 拼接路径并保留结尾的 /
func joinPaths(base, rel string) string {
	if rel == "" {
		if base == "" {
			return "/"
		}
		return base
	}

	joined := path.Join("/", base, rel)
	if strings.HasSuffix(rel, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}
