package core

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/cron"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/hosting"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/templates"
	"github.com/gocrud/ginject/urls"
	"github.com/gocrud/ginject/web"
)

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	configBuilder  *config.ConfigurationBuilder
	loggingBuilder *logging.LoggingBuilder

	modules        []any
	root           *urls.Resolver
	engines        []*templates.Engine
	configurators  []Configurator
	webConfigs     []func(*web.Builder)
	cronConfigs    []func(*cron.Builder)
	hostedResolves []reflect.Type

	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// ConfigureConfiguration 配置配置源
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志提供者。
// 没有添加任何提供者时按 logging:format 选择控制台输出。
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureModules 追加注入模块，元素形式同 inject.WithModules
func (b *ApplicationBuilder) ConfigureModules(modules ...any) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules = append(b.modules, modules...)
	return b
}

// ConfigureURLs 设置路由树，启动时改写其中的回调并挂载到 Web 主机
func (b *ApplicationBuilder) ConfigureURLs(root *urls.Resolver) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = root
	return b
}

// ConfigureTemplates 注册模板引擎，启动时改写其上下文处理器
func (b *ApplicationBuilder) ConfigureTemplates(engines ...*templates.Engine) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engines = append(b.engines, engines...)
	return b
}

// ConfigureWeb 定制 Web 主机
func (b *ApplicationBuilder) ConfigureWeb(configure func(*web.Builder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.webConfigs = append(b.webConfigs, configure)
	}
	return b
}

// ConfigureCron 添加定时任务。没有任务时不启动定时服务。
func (b *ApplicationBuilder) ConfigureCron(configure func(*cron.Builder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.cronConfigs = append(b.cronConfigs, configure)
	}
	return b
}

// Configure 添加配置器
func (b *ApplicationBuilder) Configure(configurators ...Configurator) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configurators = append(b.configurators, configurators...)
	return b
}

// AddExtension 添加扩展。扩展实现 di.Module 时作为模块安装，
// 实现 AppConfigurator 时参与构建配置，两者都不实现会 panic。
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := ext.(di.Module); ok {
		b.modules = append(b.modules, m)
	}
	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}
	return b
}

// AddOptions 从配置节加载 T 并注册到容器
//
//	core.AddOptions[SiteOptions](builder, "site")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddHostedService 注册由容器创建的托管服务，T 需要已在某个模块中注册
func AddHostedService[T hosting.HostedService](b *ApplicationBuilder) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hostedResolves = append(b.hostedResolves, di.TypeOf[T]())
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// Build 构建应用程序：配置 → 日志 → 注入器 → Web/定时任务 → Ready → 挂载路由
func (b *ApplicationBuilder) Build() (Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg, err := b.configBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("core: build configuration: %w", err)
	}

	var logSettings logging.Settings
	if cfg.Has("logging") {
		if logSettings, err = config.Load[logging.Settings](cfg, "logging"); err != nil {
			return nil, fmt.Errorf("core: logging: %w", err)
		}
	}
	if err := b.loggingBuilder.Apply(logSettings); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	factory := b.loggingBuilder.Build()
	logger := factory.CreateLogger("Application")

	injector := inject.New(cfg, logger,
		inject.WithModules(b.modules...),
		inject.WithTemplateEngines(b.engines...))
	container := injector.Container()
	di.Register[logging.LoggerFactory](container, di.WithValue(factory))

	port := 8080
	if cfg.Has("server:port") {
		if port, err = cfg.GetInt("server:port"); err != nil {
			return nil, fmt.Errorf("core: server:port: %w", err)
		}
	}

	var timeouts web.Timeouts
	for key, dst := range map[string]*time.Duration{
		"server:read_timeout":  &timeouts.Read,
		"server:write_timeout": &timeouts.Write,
		"server:idle_timeout":  &timeouts.Idle,
	} {
		if *dst, err = config.Duration(cfg.Get(key), 0); err != nil {
			return nil, fmt.Errorf("core: %s: %w", key, err)
		}
	}

	webBuilder := web.NewBuilder(factory.CreateLogger("web")).
		UseHost(cfg.Get("server:host")).
		UsePort(port).
		UseTimeouts(timeouts)
	if accessLog, err := cfg.GetBool("server:access_log"); err == nil && accessLog {
		webBuilder.UseAccessLog()
	}
	webBuilder.Use(injector.RequestMiddleware())
	if csrf, err := cfg.GetBool("server:csrf"); err != nil || csrf {
		webBuilder.UseCSRF()
	}
	webBuilder.UseMetrics(cfg.GetWithDefault("server:metrics_path", "/metrics"))

	cronBuilder := cron.NewBuilder()

	buildCtx := &BuildContext{
		container:     container,
		configuration: cfg,
		logger:        logger,
		injector:      injector,
		cleanups:      make(map[string]func()),
	}
	for _, configure := range b.configurators {
		configure(buildCtx)
	}
	if err := errors.Join(buildCtx.errs...); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	for _, configure := range b.webConfigs {
		configure(webBuilder)
	}
	for _, configure := range b.cronConfigs {
		configure(cronBuilder)
	}

	if err := injector.Ready(b.root); err != nil {
		return nil, err
	}
	logger.Info("injector built")

	if b.root != nil {
		if err := webBuilder.Mount(b.root); err != nil {
			return nil, err
		}
	}

	host := webBuilder.Build()
	services := []hosting.HostedService{host}

	if cronBuilder.Len() > 0 {
		svc, err := cronBuilder.Build(container, injector.Scope(), factory.CreateLogger("cron"))
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	services = append(services, buildCtx.hostedServices...)

	for _, typ := range b.hostedResolves {
		instance, err := container.Get(typ)
		if err != nil {
			return nil, fmt.Errorf("core: hosted service %v: %w", typ, err)
		}
		services = append(services, instance.(hosting.HostedService))
	}

	return &application{
		container:       container,
		configuration:   cfg,
		factory:         factory,
		logger:          logger,
		injector:        injector,
		host:            host,
		web:             webBuilder,
		hostedServices:  services,
		cleanups:        buildCtx.cleanups,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}, nil
}
