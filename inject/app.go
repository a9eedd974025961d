// Package inject 将 di 容器接入 gin：请求作用域、当前请求绑定、
// 回调改写以及启动时对路由树、模板处理器和管理命令的处理。
package inject

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/templates"
	"github.com/gocrud/ginject/urls"
)

// App 注入框架的入口，持有容器、请求作用域与请求模块
type App struct {
	settings config.Configuration
	logger   logging.Logger
	debug    bool

	container di.Container
	scope     *RequestScope
	module    *RequestModule

	modules   []any
	engines   []*templates.Engine
	installed []di.Module

	once     sync.Once
	readyErr error
}

// Option App 选项
type Option func(*App)

// WithModules 追加模块，元素可以是 di.Module、func() di.Module 或 func(*di.Binder)
func WithModules(mods ...any) Option {
	return func(a *App) {
		a.modules = append(a.modules, mods...)
	}
}

// WithTemplateEngines 启动时处理这些模板引擎的上下文处理器
func WithTemplateEngines(engines ...*templates.Engine) Option {
	return func(a *App) {
		a.engines = append(a.engines, engines...)
	}
}

// New 创建 App。settings 为 nil 时使用空配置。
func New(settings config.Configuration, logger logging.Logger, opts ...Option) *App {
	if settings == nil {
		settings = config.FromMap(nil)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithCategory("inject")

	debug, _ := settings.GetBool("debug")

	a := &App{
		settings:  settings,
		logger:    logger,
		debug:     debug,
		container: di.NewContainer(),
		scope:     NewRequestScope(logger),
	}
	a.module = NewRequestModule(settings, logger, debug)

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Container 返回容器，Ready 之前可以继续注册服务
func (a *App) Container() di.Container {
	return a.container
}

// Scope 返回请求作用域
func (a *App) Scope() *RequestScope {
	return a.scope
}

// Module 返回请求模块
func (a *App) Module() *RequestModule {
	return a.module
}

// RequestMiddleware 返回绑定请求作用域的 gin 中间件
func (a *App) RequestMiddleware() gin.HandlerFunc {
	return RequestMiddleware(a.scope, a.module)
}

// InjectorMiddleware 已废弃，使用 RequestMiddleware
//
// Deprecated: use RequestMiddleware.
func (a *App) InjectorMiddleware() gin.HandlerFunc {
	a.logger.Warn("InjectorMiddleware is deprecated, use RequestMiddleware instead")
	return a.RequestMiddleware()
}

// Ready 安装模块、构建容器并改写路由树、模板处理器与命令加载器。
// 只执行一次，之后的调用返回第一次的结果。
func (a *App) Ready(root *urls.Resolver) error {
	a.once.Do(func() {
		a.readyErr = a.ready(root)
	})
	return a.readyErr
}

func (a *App) ready(root *urls.Resolver) error {
	binder := di.NewBinder(a.container)

	if err := binder.Install(a.module); err != nil {
		return fmt.Errorf("inject: %w", err)
	}

	names := a.settings.GetStringSlice("injector:modules")
	for _, name := range names {
		entry, ok := LookupModule(name)
		if !ok {
			return fmt.Errorf("inject: module %q in injector:modules is not registered", name)
		}
		if err := a.install(binder, entry); err != nil {
			return fmt.Errorf("inject: module %q: %w", name, err)
		}
	}

	for _, entry := range a.modules {
		if err := a.install(binder, entry); err != nil {
			return fmt.Errorf("inject: %w", err)
		}
	}

	if !a.container.Has(di.TypeOf[di.Container](), "") {
		di.Register[di.Container](a.container, di.WithValue(a.container))
	}
	if !a.container.Has(di.TypeOf[logging.Logger](), "") {
		di.Register[logging.Logger](a.container, di.WithValue(a.logger))
	}

	if err := a.container.Build(); err != nil {
		return fmt.Errorf("inject: %w", err)
	}

	if root != nil {
		ProcessResolver(root, a.container)
	}
	for _, engine := range a.engines {
		engine.ContextProcessors = ProcessList(engine.ContextProcessors, a.container)
	}
	PatchCommandLoader(a.container)

	a.logger.Info("injector ready",
		logging.F("modules", len(names)+len(a.modules)),
		logging.F("debug", a.debug))
	return nil
}

func (a *App) install(b *di.Binder, entry any) error {
	m, err := di.AsModule(entry)
	if err != nil {
		return err
	}
	if err := b.Install(m); err != nil {
		return err
	}
	a.installed = append(a.installed, m)
	return nil
}

// Close 按安装的逆序关闭实现了 io.Closer 的模块
func (a *App) Close() error {
	var errs []error
	for i := len(a.installed) - 1; i >= 0; i-- {
		closer, ok := a.installed[i].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("inject: close %T: %w", a.installed[i], err))
		}
	}
	return errors.Join(errs...)
}
