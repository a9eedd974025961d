// Package mongodb 注册 *mongo.Client 与默认 *mongo.Database
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

func init() {
	inject.RegisterModule("mongodb", func() di.Module { return &Module{} })
}

// Options MongoDB 配置
type Options struct {
	URI            string `json:"uri" validate:"required"`
	Database       string `json:"database" validate:"required"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	MaxPoolSize    uint64 `json:"max_pool_size"`
	MinPoolSize    uint64 `json:"min_pool_size"`
	ConnectTimeout string `json:"connect_timeout"`
}

func (o Options) clientOptions() (*options.ClientOptions, error) {
	timeout, err := config.Duration(o.ConnectTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if o.MaxPoolSize > 0 && o.MinPoolSize > o.MaxPoolSize {
		return nil, fmt.Errorf("min_pool_size %d exceeds max_pool_size %d", o.MinPoolSize, o.MaxPoolSize)
	}

	opts := options.Client().ApplyURI(o.URI).SetConnectTimeout(timeout)
	if o.Username != "" || o.Password != "" {
		opts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		opts.SetMinPoolSize(o.MinPoolSize)
	}
	return opts, nil
}

// Module 注册单例 *mongo.Client 和 Options.Database 对应的 *mongo.Database。
// 驱动在后台建立连接，启动阶段不要求服务器可达。
type Module struct {
	Section string
	Options *Options

	mu     sync.Mutex
	client *mongo.Client
}

// Configure 实现 di.Module
func (m *Module) Configure(b *di.Binder) {
	var dbName string

	di.Register[*mongo.Client](b, di.WithFactory(func(cfg config.Configuration, logger logging.Logger) (*mongo.Client, error) {
		opts, err := m.load(cfg)
		if err != nil {
			return nil, err
		}
		clientOpts, err := opts.clientOptions()
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}

		client, err := mongo.Connect(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("mongodb: connect: %w", err)
		}

		m.mu.Lock()
		m.client = client
		m.mu.Unlock()
		dbName = opts.Database

		logger.Info("mongodb client configured", logging.F("database", opts.Database))
		return client, nil
	}))

	di.Register[*mongo.Database](b, di.WithFactory(func(client *mongo.Client) *mongo.Database {
		return client.Database(dbName)
	}))
}

func (m *Module) load(cfg config.Configuration) (Options, error) {
	if m.Options != nil {
		return *m.Options, nil
	}
	section := m.Section
	if section == "" {
		section = "mongodb"
	}
	opts, err := config.Load[Options](cfg, section)
	if err != nil {
		return opts, fmt.Errorf("mongodb: %w", err)
	}
	return opts, nil
}

// Close 断开客户端
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
