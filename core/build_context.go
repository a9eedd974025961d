package core

import (
	"fmt"
	"sync"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/hosting"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

// Configurator 配置器函数类型
// 配置器在容器构建之前执行，可以注册服务、添加托管服务等
type Configurator func(*BuildContext)

// BuildContext 构建上下文
type BuildContext struct {
	container     di.Container
	configuration config.Configuration
	logger        logging.Logger
	injector      *inject.App

	hostedServices []hosting.HostedService
	cleanups       map[string]func()
	errs           []error

	mu sync.Mutex
}

// Container 返回容器，可直接用于 di.Register[T](ctx.Container(), ...)
func (c *BuildContext) Container() di.Container {
	return c.container
}

// Configuration 返回配置
func (c *BuildContext) Configuration() config.Configuration {
	return c.configuration
}

// Logger 返回应用日志记录器
func (c *BuildContext) Logger() logging.Logger {
	return c.logger
}

// Injector 返回注入框架实例
func (c *BuildContext) Injector() *inject.App {
	return c.injector
}

// AddHostedService 添加托管服务
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostedServices = append(c.hostedServices, service)
}

// SetCleanup 设置应用退出时执行的清理函数，相同 key 会覆盖
func (c *BuildContext) SetCleanup(key string, cleanup func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups[key] = cleanup
}

// Fail 记录配置错误，Build 会返回这些错误
func (c *BuildContext) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// ConfigureOptions 读取配置节并校验，结果作为 T 的单例注册
func ConfigureOptions[T any](ctx *BuildContext, section string) {
	opts, err := config.Load[T](ctx.configuration, section)
	if err != nil {
		ctx.Fail(fmt.Errorf("options %q: %w", section, err))
		return
	}
	di.Register[T](ctx.container, di.WithValue(opts))

	ctx.logger.Debug("configured options",
		logging.F("type", di.TypeOf[T]().String()),
		logging.F("section", section))
}
