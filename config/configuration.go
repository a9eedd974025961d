package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Configuration 只读的分层配置，键用 ":" 或 "." 分隔层级
type Configuration interface {
	Get(key string) string
	GetWithDefault(key, defaultValue string) string
	GetInt(key string) (int, error)
	GetBool(key string) (bool, error)
	// GetStringSlice 接受数组或逗号分隔的字符串
	GetStringSlice(key string) []string
	Has(key string) bool
	// GetSection 返回子树，key 不是 map 时返回空配置
	GetSection(key string) Configuration
	// Bind 经 JSON 把子树解码到 target
	Bind(key string, target any) error
	// GetAll 返回整棵树的深拷贝
	GetAll() map[string]any
}

// ConfigurationSource 配置源
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// ConfigurationBuilder 按添加顺序合并配置源，后添加的覆盖先添加的
type ConfigurationBuilder struct {
	mu      sync.RWMutex
	sources []ConfigurationSource
}

func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	b.sources = append(b.sources, source)
	b.mu.Unlock()
	return b
}

func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(jsonFile(path, firstOr(optional)))
}

func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(yamlFile(path, firstOr(optional)))
}

// AddDotEnv 读取 .env 文件，键的转换与 AddEnvironmentVariables 相同
func (b *ConfigurationBuilder) AddDotEnv(path, prefix string, optional ...bool) *ConfigurationBuilder {
	return b.Add(dotEnvFile(path, prefix, firstOr(optional)))
}

// AddEnvironmentVariables 读取带 prefix 的环境变量，GINJECT_REDIS_ADDR 在前缀 GINJECT_ 下对应 redis:addr
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvSource{Prefix: prefix})
}

func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(MapSource(data))
}

func (b *ConfigurationBuilder) Build() (Configuration, error) {
	tree, err := b.merge()
	if err != nil {
		return nil, err
	}
	c := &configuration{store: NewValueStore(), builder: b}
	c.store.Store(tree)
	return c, nil
}

// Reload 重新读取全部配置源并整体替换 cfg 的快照，cfg 必须由 Build 创建。
// 读取失败时保留旧快照。
func Reload(cfg Configuration) error {
	c, ok := cfg.(*configuration)
	if !ok || c.builder == nil {
		return fmt.Errorf("config: %T cannot be reloaded", cfg)
	}
	tree, err := c.builder.merge()
	if err != nil {
		return err
	}
	c.store.Store(tree)
	return nil
}

func (b *ConfigurationBuilder) merge() (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tree := make(map[string]any)
	for _, src := range b.sources {
		data, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("config: load %s: %w", src.Name(), err)
		}
		mergeMaps(tree, data)
	}
	return tree, nil
}

type configuration struct {
	store   *ValueStore
	builder *ConfigurationBuilder
}

// FromMap 直接包装 data，不复制
func FromMap(data map[string]any) Configuration {
	c := &configuration{store: NewValueStore()}
	if data != nil {
		c.store.Store(data)
	}
	return c
}

func (c *configuration) lookup(key string) (any, bool) {
	var node any = c.store.Load()
	for _, part := range globalPathCache.GetPathSegments(key) {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

func (c *configuration) Get(key string) string {
	v, ok := c.lookup(key)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	v, ok := c.lookup(key)
	if !ok {
		return 0, fmt.Errorf("config: key %s not found", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("config: %s: cannot use %T as int", key, v)
}

func (c *configuration) GetBool(key string) (bool, error) {
	v, ok := c.lookup(key)
	if !ok {
		return false, fmt.Errorf("config: key %s not found", key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return b != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	}
	return false, fmt.Errorf("config: %s: cannot use %T as bool", key, v)
}

func (c *configuration) GetStringSlice(key string) []string {
	v, _ := c.lookup(key)
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = fmt.Sprint(item)
		}
		return out
	case string:
		var out []string
		for _, item := range strings.Split(list, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return nil
}

func (c *configuration) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

func (c *configuration) GetSection(key string) Configuration {
	v, _ := c.lookup(key)
	m, _ := v.(map[string]any)
	return FromMap(m)
}

func (c *configuration) Bind(key string, target any) error {
	v, ok := c.lookup(key)
	if !ok {
		return fmt.Errorf("config: key %s not found", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: decode %s into %T: %w", key, target, err)
	}
	return nil
}

func (c *configuration) GetAll() map[string]any {
	out := make(map[string]any)
	mergeMaps(out, c.store.Load())
	return out
}

// mergeMaps 把 src 深度合并进 dst，src 中的 map 总是复制后再写入
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		sub, isMap := v.(map[string]any)
		if !isMap {
			dst[k] = v
			continue
		}
		target, ok := dst[k].(map[string]any)
		if !ok {
			target = make(map[string]any, len(sub))
			dst[k] = target
		}
		mergeMaps(target, sub)
	}
}

func firstOr(flags []bool) bool {
	return len(flags) > 0 && flags[0]
}
