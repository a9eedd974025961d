// Package etcd 注册 *clientv3.Client
package etcd

import (
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
	"github.com/gocrud/ginject/logging"
)

func init() {
	inject.RegisterModule("etcd", func() di.Module { return &Module{} })
}

// Options etcd 客户端配置
type Options struct {
	Endpoints        []string `json:"endpoints" validate:"required,min=1,dive,required"`
	DialTimeout      string   `json:"dial_timeout"`
	AutoSyncInterval string   `json:"auto_sync_interval"`
	Username         string   `json:"username"`
	Password         string   `json:"password" validate:"required_with=Username"`
}

func (o Options) clientConfig() (clientv3.Config, error) {
	dial, err := config.Duration(o.DialTimeout, 5*time.Second)
	if err != nil {
		return clientv3.Config{}, err
	}
	autoSync, err := config.Duration(o.AutoSyncInterval, 0)
	if err != nil {
		return clientv3.Config{}, err
	}

	cfg := clientv3.Config{
		Endpoints:        o.Endpoints,
		DialTimeout:      dial,
		AutoSyncInterval: autoSync,
	}
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	return cfg, nil
}

// Module 注册单例 *clientv3.Client
type Module struct {
	Section string
	Options *Options

	mu     sync.Mutex
	client *clientv3.Client
}

// Configure 实现 di.Module
func (m *Module) Configure(b *di.Binder) {
	di.Register[*clientv3.Client](b, di.WithFactory(func(cfg config.Configuration, logger logging.Logger) (*clientv3.Client, error) {
		opts, err := m.load(cfg)
		if err != nil {
			return nil, err
		}
		clientCfg, err := opts.clientConfig()
		if err != nil {
			return nil, fmt.Errorf("etcd: %w", err)
		}

		client, err := clientv3.New(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("etcd: create client: %w", err)
		}

		m.mu.Lock()
		m.client = client
		m.mu.Unlock()

		logger.Info("etcd client configured", logging.F("endpoints", opts.Endpoints))
		return client, nil
	}))
}

func (m *Module) load(cfg config.Configuration) (Options, error) {
	if m.Options != nil {
		return *m.Options, nil
	}
	section := m.Section
	if section == "" {
		section = "etcd"
	}
	opts, err := config.Load[Options](cfg, section)
	if err != nil {
		return opts, fmt.Errorf("etcd: %w", err)
	}
	return opts, nil
}

// Close 关闭客户端
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
