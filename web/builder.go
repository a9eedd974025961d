// Package web 基于 gin 的 Web 主机：构建引擎、挂载路由树并作为托管服务运行。
package web

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/metrics"
	"github.com/gocrud/ginject/urls"
	"github.com/gocrud/ginject/views"
)

// Timeouts http.Server 的超时，零值使用默认值
type Timeouts struct {
	Read  time.Duration // 默认 10s
	Write time.Duration // 默认 15s
	Idle  time.Duration // 默认 60s
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Read <= 0 {
		t.Read = 10 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 15 * time.Second
	}
	if t.Idle <= 0 {
		t.Idle = 60 * time.Second
	}
	return t
}

// Builder 收集引擎配置，Build 后得到可运行的 Host
type Builder struct {
	logger   logging.Logger
	engine   *gin.Engine
	host     string
	port     int
	timeouts Timeouts
	mounts   []urls.MountOption
}

// NewBuilder 创建带 panic 恢复的 gin 引擎，默认监听 :8080
func NewBuilder(logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Discard()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	return &Builder{logger: logger, engine: engine, port: 8080}
}

// UsePort 0 表示随机端口，实际地址见 Host.Address
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// UseHost 绑定的主机名，默认所有地址
func (b *Builder) UseHost(host string) *Builder {
	b.host = host
	return b
}

func (b *Builder) UseTimeouts(t Timeouts) *Builder {
	b.timeouts = t
	return b
}

func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// UseCSRF 为挂载的路由启用 CSRF 校验，豁免的回调除外
func (b *Builder) UseCSRF(opts ...views.CSRFOptions) *Builder {
	b.mounts = append(b.mounts, urls.WithRouteMiddleware(views.CSRFGuard(opts...)))
	return b
}

// UseMetrics 在 path 上暴露 Prometheus 指标
func (b *Builder) UseMetrics(path string) *Builder {
	b.engine.GET(path, gin.WrapH(metrics.Handler()))
	return b
}

// UseAccessLog 每个请求结束后写一条 Info 日志
func (b *Builder) UseAccessLog() *Builder {
	logger := b.logger.WithCategory("access")
	b.engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []logging.Field{
			logging.F("method", c.Request.Method),
			logging.F("path", c.Request.URL.Path),
			logging.F("status", c.Writer.Status()),
			logging.F("latency", time.Since(start).String()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.F("error", c.Errors.String()))
		}
		logger.Info("request", fields...)
	})
	return b
}

func (b *Builder) Any(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.Any(path, handlers...)
	return b
}

func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

func (b *Builder) Static(relativePath, root string) *Builder {
	b.engine.Static(relativePath, root)
	return b
}

func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// Mount 挂载路由树，树中的回调必须已经过注入改写
func (b *Builder) Mount(root *urls.Resolver) error {
	if err := urls.Mount(b.engine, root, b.mounts...); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	b.logger.Debug("mounted url tree", logging.F("routes", len(root.Routes())))
	return nil
}

// Engine 底层 gin 引擎，用于 Builder 没有覆盖的定制
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

func (b *Builder) Build() *Host {
	t := b.timeouts.withDefaults()
	return &Host{
		listen: net.JoinHostPort(b.host, strconv.Itoa(b.port)),
		logger: b.logger,
		server: &http.Server{
			Handler:      b.engine,
			ReadTimeout:  t.Read,
			WriteTimeout: t.Write,
			IdleTimeout:  t.Idle,
		},
	}
}
