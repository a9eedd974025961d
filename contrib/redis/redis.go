// Package redis 提供绑定 *redis.Client 的注入模块，配置读取自 redis 节。
package redis

import (
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

func init() {
	inject.RegisterModule("redis", func() di.Module { return &Module{} })
}

// Options Redis 客户端配置
type Options struct {
	Addr         string `json:"addr" validate:"required,hostname_port"`
	Password     string `json:"password"`
	DB           int    `json:"db" validate:"min=0"`
	PoolSize     int    `json:"pool_size" validate:"min=0"`
	MinIdleConns int    `json:"min_idle_conns" validate:"min=0"`
	MaxRetries   int    `json:"max_retries"`
	DialTimeout  string `json:"dial_timeout"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

func (o Options) clientOptions() (*goredis.Options, error) {
	dial, err := config.Duration(o.DialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	read, err := config.Duration(o.ReadTimeout, 3*time.Second)
	if err != nil {
		return nil, err
	}
	write, err := config.Duration(o.WriteTimeout, 3*time.Second)
	if err != nil {
		return nil, err
	}

	return &goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
		DialTimeout:  dial,
		ReadTimeout:  read,
		WriteTimeout: write,
	}, nil
}

// Module 注册单例 *redis.Client。Options 为 nil 时从配置的 Section 节读取（默认 redis）。
// 连接是惰性建立的，启动时不会访问 Redis。
type Module struct {
	Section string
	Options *Options

	mu     sync.Mutex
	client *goredis.Client
}

// Configure 实现 di.Module
func (m *Module) Configure(b *di.Binder) {
	di.Register[*goredis.Client](b, di.WithFactory(func(cfg config.Configuration, logger logging.Logger) (*goredis.Client, error) {
		opts, err := m.load(cfg)
		if err != nil {
			return nil, err
		}
		clientOpts, err := opts.clientOptions()
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}

		client := goredis.NewClient(clientOpts)
		m.mu.Lock()
		m.client = client
		m.mu.Unlock()

		logger.Info("redis client configured", logging.F("addr", opts.Addr), logging.F("db", opts.DB))
		return client, nil
	}))
}

func (m *Module) load(cfg config.Configuration) (Options, error) {
	if m.Options != nil {
		return *m.Options, nil
	}
	section := m.Section
	if section == "" {
		section = "redis"
	}
	opts, err := config.Load[Options](cfg, section)
	if err != nil {
		return opts, fmt.Errorf("redis: %w", err)
	}
	return opts, nil
}

// Close 关闭已创建的客户端
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
