package cron

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/metrics"
)

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Service Cron 定时任务托管服务，实现 hosting.HostedService
type Service struct {
	cron      *cron.Cron
	container di.Container
	scope     *inject.RequestScope
	logger    logging.Logger

	mu      sync.RWMutex
	jobs    map[string]jobDefinition
	entries map[string]cron.EntryID
}

func (s *Service) schedule(job jobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(job.spec, func() {
		if err := s.run(job); err != nil {
			s.logger.Error("cron job failed", logging.F("job", job.name), logging.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron: failed to add job %q: %w", job.name, err)
	}

	s.jobs[job.name] = job
	s.entries[job.name] = entryID
	s.logger.Debug("cron job registered", logging.F("job", job.name), logging.F("spec", job.spec))
	return nil
}

// Name 实现 hosting.Named
func (s *Service) Name() string {
	return "cron"
}

// Jobs 返回已注册的任务名
func (s *Service) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Remove 移除任务
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
		delete(s.jobs, name)
		s.logger.Info("cron job removed", logging.F("job", name))
	}
}

// Run 立即执行一次任务
func (s *Service) Run(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("cron: unknown job %q", name)
	}
	return s.run(job)
}

// run 在新的请求作用域中执行任务
func (s *Service) run(job jobDefinition) (err error) {
	ctx := s.scope.Prepare(context.Background())
	defer s.scope.Cleanup(ctx)

	s.logger.Debug("cron job started", logging.F("job", job.name))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.JobRunsTotal.WithLabelValues(job.name, status).Inc()
	}()

	switch h := job.handler.(type) {
	case func():
		h()
		return nil
	case func() error:
		return h()
	}

	var args []any
	if t := reflect.TypeOf(job.handler); t.NumIn() > 0 && t.In(0) == contextType {
		args = append(args, ctx)
	}

	out, err := di.Call(ctx, s.container, job.handler, args...)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		if e, ok := out[len(out)-1].(error); ok {
			return e
		}
	}
	return nil
}

// Start 实现 HostedService.Start，阻塞直到 ctx 取消
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("cron service starting", logging.F("jobs", len(s.Jobs())))
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 实现 HostedService.Stop，等待正在执行的任务结束
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("cron service stopping")
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Err(err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
