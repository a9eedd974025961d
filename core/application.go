// Package core 组装应用：配置、日志、注入器、Web 主机与定时任务，并管理它们的生命周期。
package core

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/ginject/commands"
	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/hosting"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/web"
)

// Application 应用程序接口
type Application interface {
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	RunCommand(ctx context.Context, args []string) error

	Injector() *inject.App
	Engine() *gin.Engine
	Host() *web.Host
	Services() di.Container
	Configuration() config.Configuration
	Logger() logging.Logger
}

// application 应用程序实现
type application struct {
	container     di.Container
	configuration config.Configuration
	factory       logging.LoggerFactory
	logger        logging.Logger
	injector      *inject.App
	host          *web.Host
	web           *web.Builder

	hostedServices  []hosting.HostedService
	serviceManager  *hosting.HostedServiceManager
	cleanups        map[string]func()
	shutdownTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
	mu       sync.Mutex
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 启动托管服务并阻塞，直到收到信号、Stop、ctx 取消或某个服务失败，
// 然后在 shutdownTimeout 内依次停止服务、关闭模块并执行清理。
func (a *application) RunAsync(ctx context.Context) error {
	if !a.begin() {
		return errors.New("core: application is already running")
	}
	defer a.end()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	a.serviceManager = hosting.NewHostedServiceManager(a.logger)
	for _, svc := range a.hostedServices {
		a.serviceManager.Add(svc)
	}
	failures := a.serviceManager.StartAll(runCtx)
	a.logger.Info("application started", logging.F("services", a.serviceManager.Len()))

	runErr := a.waitForStop(ctx, failures)
	cancelRun()
	a.shutdown()
	return runErr
}

func (a *application) begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return false
	}
	a.running = true
	return true
}

func (a *application) end() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// waitForStop 返回导致停止的服务错误，其他停止原因返回 nil
func (a *application) waitForStop(ctx context.Context, failures <-chan error) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		a.logger.Info("received shutdown signal", logging.F("signal", sig.String()))
	case <-a.stopCh:
		a.logger.Info("application stop requested")
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	case err := <-failures:
		a.logger.Error("hosted service failed, stopping application", logging.Err(err))
		return err
	}
	return nil
}

func (a *application) shutdown() {
	a.logger.Info("shutting down application", logging.F("timeout", a.shutdownTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.serviceManager.StopAll(ctx); err != nil {
		a.logger.Error("failed to stop hosted services", logging.Err(err))
	}
	_ = a.serviceManager.Wait()

	if err := a.injector.Close(); err != nil {
		a.logger.Error("failed to close modules", logging.Err(err))
	}
	for key, cleanup := range a.cleanups {
		a.logger.Debug("running cleanup", logging.F("key", key))
		cleanup()
	}

	a.logger.Info("application stopped")
	_ = a.factory.Close()
}

// Stop 请求停止，RunAsync 负责实际关闭。可重复调用。
func (a *application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return nil
}

// RunCommand 执行管理命令，命令实例由注入器创建
func (a *application) RunCommand(ctx context.Context, args []string) error {
	return commands.Execute(ctx, args)
}

func (a *application) Injector() *inject.App {
	return a.injector
}

func (a *application) Engine() *gin.Engine {
	return a.web.Engine()
}

// Host 返回 Web 主机，监听地址在服务启动后可用
func (a *application) Host() *web.Host {
	return a.host
}

func (a *application) Services() di.Container {
	return a.container
}

func (a *application) Configuration() config.Configuration {
	return a.configuration
}

func (a *application) Logger() logging.Logger {
	return a.logger
}
