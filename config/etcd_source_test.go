package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// memoryKV 只实现 Get，按前缀返回键值
type memoryKV struct {
	clientv3.KV
	data    map[string]string
	lastKey string
	err     error
}

func (m *memoryKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	resp := &clientv3.GetResponse{}
	for k, v := range m.data {
		if strings.HasPrefix(k, key) {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	return resp, nil
}

func TestEtcdSource(t *testing.T) {
	kv := &memoryKV{data: map[string]string{
		"/ginject/redis/addr":       "localhost:6379",
		"/ginject/redis/db":         "2",
		"/ginject/injector/modules": `["redis","etcd"]`,
		"/ginject/server":           "port: 9000\ncsrf: false",
		"/ginject/":                 "ignored",
		"/ginjectother/redis/addr":  "wrong",
	}}

	cfg, err := NewConfigurationBuilder().
		AddEtcd(EtcdOptions{Prefix: "/ginject", KV: kv}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "/ginject/", kv.lastKey)
	assert.Equal(t, "localhost:6379", cfg.Get("redis:addr"))
	assert.Equal(t, "2", cfg.Get("redis:db"))
	assert.Equal(t, []string{"redis", "etcd"}, cfg.GetStringSlice("injector:modules"))

	port, err := cfg.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 9000, port)

	csrf, err := cfg.GetBool("server:csrf")
	require.NoError(t, err)
	assert.False(t, csrf)
}

func TestEtcdSourceError(t *testing.T) {
	src := &EtcdSource{Options: EtcdOptions{KV: &memoryKV{err: errors.New("unavailable")}}}
	_, err := src.Load()
	assert.ErrorContains(t, err, "unavailable")
	assert.Equal(t, "Etcd()", src.Name())
}

func TestDecodeEtcdValue(t *testing.T) {
	assert.Equal(t, float64(3), decodeEtcdValue([]byte("3")))
	assert.Equal(t, map[string]any{"a": "b"}, decodeEtcdValue([]byte("a: b")))
	assert.Equal(t, "plain text", decodeEtcdValue([]byte("plain text")))
	assert.Equal(t, "host:1", decodeEtcdValue([]byte("host:1")))
}
