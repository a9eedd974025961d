// Package cron 提供定时任务托管服务。任务函数的参数由容器注入，
// 每次执行都在独立的请求作用域中进行。
package cron

import (
	"fmt"
	"reflect"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any
}

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	jobs             []jobDefinition
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{location: "UTC"}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加任务。handler 可以是 func()、func() error，
// 或参数由容器解析的任意函数（首参数可以是 context.Context）。
//
// 示例：
//
//	builder.AddJob("0 */5 * * * *", "sync-data", func(ctx context.Context, svc *DataService) error {
//	    return svc.Sync(ctx)
//	})
func (b *Builder) AddJob(spec, name string, handler any) *Builder {
	b.jobs = append(b.jobs, jobDefinition{spec: spec, name: name, handler: handler})
	return b
}

// Len 已添加的任务数量
func (b *Builder) Len() int {
	return len(b.jobs)
}

// Build 创建定时任务服务。scope 为 nil 时使用新的请求作用域。
func (b *Builder) Build(container di.Container, scope *inject.RequestScope, logger logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if scope == nil {
		scope = inject.NewRequestScope(logger)
	}

	loc, err := time.LoadLocation(b.location)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location %q: %w", b.location, err)
	}

	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if b.enableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if b.enableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	s := &Service{
		cron:      cron.New(cronOpts...),
		container: container,
		scope:     scope,
		logger:    logger,
		jobs:      make(map[string]jobDefinition, len(b.jobs)),
		entries:   make(map[string]cron.EntryID, len(b.jobs)),
	}

	for _, job := range b.jobs {
		if err := validateHandler(job.handler); err != nil {
			return nil, fmt.Errorf("cron: job %q: %w", job.name, err)
		}
		if _, dup := s.jobs[job.name]; dup {
			return nil, fmt.Errorf("cron: job %q added twice", job.name)
		}
		if err := s.schedule(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func validateHandler(handler any) error {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("handler must be a function, got %T", handler)
	}
	if t.IsVariadic() {
		return fmt.Errorf("handler %v must not be variadic", t)
	}
	return nil
}
