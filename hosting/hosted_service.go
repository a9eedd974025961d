// Package hosting 管理随应用启动与停止的托管服务（Web 主机、定时任务等）。
package hosting

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gocrud/ginject/logging"
)

// HostedService 随应用运行的后台服务。
// Start 在独立的 goroutine 中调用，应阻塞到 ctx 取消或出错；
// Stop 负责优雅关闭并遵守 ctx 的超时。
type HostedService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Named 可选，日志中用它标识服务
type Named interface {
	Name() string
}

// HostedServiceManager 并发启动服务，按添加的逆序停止
type HostedServiceManager struct {
	logger logging.Logger

	mu       sync.RWMutex
	services []HostedService
	running  errgroup.Group
}

func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HostedServiceManager{logger: logger}
}

func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	m.services = append(m.services, service)
	m.mu.Unlock()
}

func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 启动全部服务并立即返回。
// 服务以非取消类错误退出时，错误会出现在返回的通道中。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	services := append([]HostedService(nil), m.services...)
	m.mu.RUnlock()

	failures := make(chan error, len(services))
	m.logger.Info("starting hosted services", logging.F("count", len(services)))

	for _, svc := range services {
		log := m.logger.WithFields(logging.F("service", serviceName(svc)))
		m.running.Go(func() error {
			log.Debug("starting hosted service")
			err := svc.Start(ctx)
			switch {
			case err == nil:
				log.Debug("hosted service completed")
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				log.Debug("hosted service stopped")
				return nil
			}
			log.Error("hosted service failed", logging.Err(err))
			failures <- err
			return err
		})
	}
	return failures
}

// StopAll 并发调用每个服务的 Stop，返回合并后的错误
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	services := append([]HostedService(nil), m.services...)
	m.mu.RUnlock()

	m.logger.Info("stopping hosted services", logging.F("count", len(services)))

	errs := make([]error, len(services))
	var wg sync.WaitGroup
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			log := m.logger.WithFields(logging.F("service", serviceName(svc)))
			if errs[i] = svc.Stop(ctx); errs[i] != nil {
				log.Error("failed to stop hosted service", logging.Err(errs[i]))
				return
			}
			log.Debug("hosted service stopped")
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Wait 等待所有 Start 返回，结果为第一个失败的服务错误
func (m *HostedServiceManager) Wait() error {
	return m.running.Wait()
}

// FuncService 由函数实现的托管服务，Stop 不做任何事
type FuncService struct {
	name string
	run  func(ctx context.Context) error
}

// NewFuncService run 应在 ctx 取消后返回
func NewFuncService(name string, run func(ctx context.Context) error) *FuncService {
	return &FuncService{name: name, run: run}
}

func (f *FuncService) Name() string { return f.name }

func (f *FuncService) Start(ctx context.Context) error { return f.run(ctx) }

func (f *FuncService) Stop(context.Context) error { return nil }

func serviceName(svc HostedService) string {
	if n, ok := svc.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}
