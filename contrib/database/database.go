// Package database 提供基于 gorm 的注入模块：单例 *gorm.DB 以及请求级的 *Session。
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

func init() {
	inject.RegisterModule("database", func() di.Module { return &Module{} })
}

// Options 数据库配置
type Options struct {
	Driver       string `json:"driver" validate:"omitempty,oneof=sqlite"`
	DSN          string `json:"dsn" validate:"required"`
	MaxIdleConns int    `json:"max_idle_conns" validate:"min=0"`
	MaxOpenConns int    `json:"max_open_conns" validate:"min=0"`
	MaxLifetime  string `json:"max_lifetime"`
	LogLevel     string `json:"log_level" validate:"omitempty,oneof=silent error warn info"`
	SlowQuery    string `json:"slow_query"`
}

// Module 注册单例 *gorm.DB 与请求级 *Session。
// Dialector 不为空时替代按 Driver 选择的方言，AutoMigrate 中的模型在连接建立后迁移。
type Module struct {
	Section     string
	Options     *Options
	Dialector   func(dsn string) gorm.Dialector
	AutoMigrate []any

	mu sync.Mutex
	db *gorm.DB
}

// Configure 实现 di.Module
func (m *Module) Configure(b *di.Binder) {
	di.Register[*gorm.DB](b, di.WithFactory(func(cfg config.Configuration, logger logging.Logger) (*gorm.DB, error) {
		opts, err := m.load(cfg)
		if err != nil {
			return nil, err
		}
		db, err := m.open(opts, logger.WithCategory("database"))
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}

		m.mu.Lock()
		m.db = db
		m.mu.Unlock()
		return db, nil
	}))

	container := b.Container
	di.Register[*Session](b, inject.RequestScoped(), di.WithProvider(func(ctx context.Context) (any, error) {
		db, err := di.ResolveContext[*gorm.DB](ctx, container)
		if err != nil {
			return nil, err
		}
		return &Session{db: db.WithContext(ctx)}, nil
	}))
}

func (m *Module) load(cfg config.Configuration) (Options, error) {
	if m.Options != nil {
		return *m.Options, nil
	}
	section := m.Section
	if section == "" {
		section = "database"
	}
	opts, err := config.Load[Options](cfg, section)
	if err != nil {
		return opts, fmt.Errorf("database: %w", err)
	}
	return opts, nil
}

func (m *Module) open(opts Options, logger logging.Logger) (*gorm.DB, error) {
	lifetime, err := config.Duration(opts.MaxLifetime, time.Hour)
	if err != nil {
		return nil, err
	}
	slow, err := config.Duration(opts.SlowQuery, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	dialect := m.Dialector
	if dialect == nil {
		dialect = sqlite.Open
	}

	db, err := gorm.Open(dialect(opts.DSN), &gorm.Config{
		Logger: newGormLogger(logger, opts.LogLevel, slow),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	if len(m.AutoMigrate) > 0 {
		if err := db.AutoMigrate(m.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	logger.Info("database connected", logging.F("driver", "sqlite"), logging.F("max_open_conns", opts.MaxOpenConns))
	return db, nil
}

// Close 关闭底层连接池
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	m.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
