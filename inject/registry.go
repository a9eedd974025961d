package inject

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

var moduleRegistry = xsync.NewMapOf[string, any]()

// RegisterModule 按名称注册模块，配置项 injector:modules 通过名称引用。
// m 可以是 di.Module、func() di.Module 或 func(*di.Binder)。
func RegisterModule(name string, m any) {
	if name == "" || m == nil {
		panic("inject: RegisterModule needs a name and a module")
	}
	if _, loaded := moduleRegistry.LoadOrStore(name, m); loaded {
		panic(fmt.Sprintf("inject: module %q registered twice", name))
	}
}

// LookupModule 查找已注册的模块
func LookupModule(name string) (any, bool) {
	return moduleRegistry.Load(name)
}
