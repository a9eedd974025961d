package inject

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/logging"
)

// RequestModule 绑定配置对象与当前请求
type RequestModule struct {
	settings config.Configuration
	logger   logging.Logger
	debug    bool
}

// NewRequestModule 创建请求绑定模块
func NewRequestModule(settings config.Configuration, logger logging.Logger, debug bool) *RequestModule {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RequestModule{settings: settings, logger: logger, debug: debug}
}

// Configure 实现 di.Module。*gin.Context 与 *http.Request 都是请求级服务，
// 由显式 provider 从当前 bracket 读取。
func (m *RequestModule) Configure(b *di.Binder) {
	if m.settings != nil {
		di.Register[config.Configuration](b, di.WithValue(m.settings))
	}

	di.Register[*gin.Context](b, RequestScoped(), di.WithProvider(func(ctx context.Context) (any, error) {
		return Request(ctx), nil
	}))

	di.Register[*http.Request](b, RequestScoped(), di.WithProvider(func(ctx context.Context) (any, error) {
		if c := Request(ctx); c != nil {
			return c.Request, nil
		}
		return (*http.Request)(nil), nil
	}))
}

// SetRequest 记录当前请求。拷贝出的 gin.Context 不属于任何处理链，
// 这种情况下请求槽位被置空，调试模式下输出警告。
func (m *RequestModule) SetRequest(ctx context.Context, c *gin.Context) {
	b := bracketFrom(ctx)
	if b == nil {
		return
	}

	if c != nil && isDetached(c) {
		if m.debug {
			m.logger.Warn("request comes from a copied gin.Context and is not bound to a handler chain; request-scoped *gin.Context will resolve to nil",
				logging.F("path", c.FullPath()))
		}
		c = nil
	}

	b.mu.Lock()
	if !b.closed {
		b.request = c
	}
	b.mu.Unlock()
}

// Request 返回 ctx 上绑定的当前请求，没有时返回 nil
func Request(ctx context.Context) *gin.Context {
	b := bracketFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.request
}

// isDetached 判断是否为 c.Copy() 的结果：处理链为空且已处于 abort 状态
func isDetached(c *gin.Context) bool {
	return c.IsAborted() && c.Handler() == nil
}
