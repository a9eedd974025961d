package inject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/metrics"
)

// ErrNoRequestScope 在请求作用域之外解析请求级服务
var ErrNoRequestScope = errors.New("RequestScope.Get was called without binding to a request. " +
	"You may need to add inject.RequestMiddleware (App.RequestMiddleware) to your gin middleware chain")

// RequestScope 请求级作用域。缓存挂在 Prepare 返回的 context 上，
// 同一次请求内相同的键返回同一个实例，Cleanup 之后全部丢弃。
type RequestScope struct {
	logger logging.Logger
}

// NewRequestScope 创建请求作用域，logger 用于记录 Cleanup 时关闭实例的错误
func NewRequestScope(logger logging.Logger) *RequestScope {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RequestScope{logger: logger}
}

// defaultScope 供 RequestScoped 使用。状态都在 context 上，任何实例都可以读取同一个 bracket。
var defaultScope = NewRequestScope(nil)

// RequestScoped 将服务绑定到请求作用域
func RequestScoped() di.Option {
	return di.WithCustomScope(defaultScope)
}

type bracketKey struct{}

// slot 一个键在一次请求内的实例，provider 只执行一次
type slot struct {
	once     sync.Once
	instance any
	err      error
}

// bracket 一次请求的作用域状态
type bracket struct {
	mu      sync.Mutex
	slots   map[di.ServiceKey]*slot
	created []any
	request *gin.Context
	closed  bool
	logger  logging.Logger
}

func bracketFrom(ctx context.Context) *bracket {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(bracketKey{}).(*bracket)
	return b
}

// Prepare 返回携带空缓存的 context，嵌套调用会遮蔽外层
func (s *RequestScope) Prepare(ctx context.Context) context.Context {
	metrics.ScopeBracketsTotal.Inc()
	metrics.ScopeBracketsActive.Inc()

	return context.WithValue(ctx, bracketKey{}, &bracket{
		slots:  make(map[di.ServiceKey]*slot),
		logger: s.logger,
	})
}

// Cleanup 丢弃 ctx 上的缓存，并按创建的逆序关闭实现了 io.Closer 的实例。可重复调用。
func (s *RequestScope) Cleanup(ctx context.Context) {
	b := bracketFrom(ctx)
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	created := b.created
	b.slots, b.created = nil, nil
	b.request = nil
	b.mu.Unlock()

	metrics.ScopeBracketsActive.Dec()

	for i := len(created) - 1; i >= 0; i-- {
		b.close(created[i])
	}
}

func (b *bracket) close(instance any) {
	closer, ok := instance.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		b.logger.Error("failed to close request-scoped instance",
			logging.F("type", fmt.Sprintf("%T", instance)), logging.Err(err))
	}
}

// Get 返回缓存的实例，不存在时调用 provider 创建。
// 同一个键的 provider 在一次请求内只执行一次，锁只保护槽位表，
// 因此 provider 内部可以继续解析其他请求级服务。失败的结果不缓存。
func (s *RequestScope) Get(ctx context.Context, key di.ServiceKey, provider di.Provider) (any, error) {
	b := bracketFrom(ctx)
	if b == nil {
		return nil, misuse(key)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, misuse(key)
	}
	sl, ok := b.slots[key]
	if !ok {
		sl = &slot{}
		b.slots[key] = sl
	}
	b.mu.Unlock()

	ran := false
	sl.once.Do(func() {
		ran = true
		sl.instance, sl.err = provider(ctx)
		if sl.err != nil {
			b.mu.Lock()
			if b.slots[key] == sl {
				delete(b.slots, key)
			}
			b.mu.Unlock()
			return
		}

		b.mu.Lock()
		closed := b.closed
		if !closed {
			b.created = append(b.created, sl.instance)
		}
		b.mu.Unlock()
		if closed {
			// 请求在创建期间已经结束
			b.close(sl.instance)
			sl.instance, sl.err = nil, misuse(key)
		}
	})
	if sl.err != nil {
		return nil, sl.err
	}

	if ran {
		metrics.ScopedResolutionsTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.ScopedResolutionsTotal.WithLabelValues("hit").Inc()
	}
	return sl.instance, nil
}

func misuse(key di.ServiceKey) error {
	metrics.ScopeMisuseTotal.Inc()
	return fmt.Errorf("%w (resolving %v)", ErrNoRequestScope, key)
}
