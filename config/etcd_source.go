package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string
	Username    string
	Password    string
	Prefix      string
	Timeout     time.Duration // 读取超时，默认 5s
	DialTimeout time.Duration // 默认 5s

	// KV 非空时直接使用，不再按 Endpoints 建立连接
	KV clientv3.KV
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// EtcdSource 读取前缀下的所有键。
// 前缀 /ginject 下的 /ginject/redis/addr 映射为 redis:addr，
// 值按 JSON、YAML、原始字符串的顺序解析。
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	if s.Options.KV != nil && len(s.Options.Endpoints) == 0 {
		return fmt.Sprintf("Etcd(%s)", s.Options.Prefix)
	}
	return fmt.Sprintf("Etcd(%s%s)", strings.Join(s.Options.Endpoints, ","), s.Options.Prefix)
}

func (s *EtcdSource) Load() (map[string]any, error) {
	kv, release, err := s.open()
	if err != nil {
		return nil, err
	}
	defer release()

	timeout := s.Options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	key := strings.TrimSuffix(s.Options.Prefix, "/") + "/"
	resp, err := kv.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd get %q: %w", key, err)
	}
	return etcdTree(s.Options.Prefix, resp.Kvs), nil
}

func (s *EtcdSource) open() (clientv3.KV, func(), error) {
	if s.Options.KV != nil {
		return s.Options.KV, func() {}, nil
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("etcd connect: %w", err)
	}
	return cli, func() { _ = cli.Close() }, nil
}

// etcdTree 把前缀下的键值对展开为嵌套 map
func etcdTree(prefix string, kvs []*mvccpb.KeyValue) map[string]any {
	tree := make(map[string]any)
	for _, kv := range kvs {
		rel := strings.Trim(strings.TrimPrefix(string(kv.Key), prefix), "/")
		if rel == "" {
			continue
		}
		setNestedValue(tree, strings.ReplaceAll(rel, "/", ":"), decodeEtcdValue(kv.Value))
	}
	return tree
}

func decodeEtcdValue(raw []byte) any {
	var value any
	if json.Unmarshal(raw, &value) == nil {
		return value
	}
	if yaml.Unmarshal(raw, &value) == nil && value != nil {
		if _, scalar := value.(string); !scalar {
			return value
		}
	}
	return string(raw)
}
