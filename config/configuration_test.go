package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()
	store.Store(map[string]any{"key": "value"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "value", store.Load()["key"])
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := NewPathCache()

	parts := cache.GetPathSegments("a:b.c")
	assert.Equal(t, []string{"a", "b", "c"}, parts)
	assert.Equal(t, parts, cache.GetPathSegments("a:b.c"))
	assert.Empty(t, cache.GetPathSegments(""))
}

func TestConfigurationGetters(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"debug": true,
			"server": map[string]any{
				"host": "localhost",
				"port": 8080,
			},
			"injector": map[string]any{
				"modules": []any{"redis", "database"},
			},
			"csv": "a, b,,c",
		}).
		AddInMemory(map[string]any{
			"server": map[string]any{"port": "9090"},
		}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Get("server:host"))
	assert.Equal(t, "localhost", cfg.Get("server.host"))
	assert.Equal(t, "fallback", cfg.GetWithDefault("server:missing", "fallback"))

	port, err := cfg.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	debug, err := cfg.GetBool("debug")
	require.NoError(t, err)
	assert.True(t, debug)

	_, err = cfg.GetBool("nope")
	assert.Error(t, err)

	assert.Equal(t, []string{"redis", "database"}, cfg.GetStringSlice("injector:modules"))
	assert.Equal(t, []string{"a", "b", "c"}, cfg.GetStringSlice("csv"))
	assert.Nil(t, cfg.GetStringSlice("missing"))

	assert.True(t, cfg.Has("server:host"))
	assert.False(t, cfg.Has("server:host:deeper"))

	section := cfg.GetSection("server")
	assert.Equal(t, "localhost", section.Get("host"))
	assert.Empty(t, cfg.GetSection("debug").GetAll())
}

func TestConfigurationMergeDoesNotAliasSources(t *testing.T) {
	src := map[string]any{"server": map[string]any{"host": "a"}}
	cfg, err := NewConfigurationBuilder().AddInMemory(src).AddInMemory(map[string]any{
		"server": map[string]any{"host": "b"},
	}).Build()
	require.NoError(t, err)

	assert.Equal(t, "b", cfg.Get("server:host"))
	assert.Equal(t, "a", src["server"].(map[string]any)["host"])
}

type serverOptions struct {
	Host string `json:"host" validate:"required"`
	Port int    `json:"port" validate:"min=1,max=65535"`
}

func TestLoad(t *testing.T) {
	cfg := FromMap(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
		"bad":    map[string]any{"port": 0},
		"name":   "ginject",
	})

	opts, err := Load[serverOptions](cfg, "server")
	require.NoError(t, err)
	assert.Equal(t, serverOptions{Host: "localhost", Port: 8080}, opts)

	_, err = Load[serverOptions](cfg, "bad")
	assert.Error(t, err)

	_, err = Load[serverOptions](cfg, "missing")
	assert.Error(t, err)

	name, err := Load[string](cfg, "name")
	require.NoError(t, err)
	assert.Equal(t, "ginject", name)
}

func TestFileSources(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	yamlPath := filepath.Join(dir, "app.yaml")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server":{"port":8000},"debug":false}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  host: yaml-host\n"), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte("APP_DEBUG=true\nAPP_REDIS_ADDR=localhost:6379\nOTHER=1\n"), 0o644))

	cfg, err := NewConfigurationBuilder().
		AddJsonFile(jsonPath).
		AddYamlFile(yamlPath).
		AddYamlFile(filepath.Join(dir, "missing.yaml"), true).
		AddDotEnv(envPath, "APP_").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Get("server:port"))
	assert.Equal(t, "yaml-host", cfg.Get("server:host"))
	assert.Equal(t, "localhost:6379", cfg.Get("redis:addr"))
	assert.False(t, cfg.Has("other"))

	debug, err := cfg.GetBool("debug")
	require.NoError(t, err)
	assert.True(t, debug)

	_, err = NewConfigurationBuilder().AddJsonFile(filepath.Join(dir, "missing.json")).Build()
	assert.Error(t, err)
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("GINJECT_TEST_INJECTOR_DEBUG", "1")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("GINJECT_TEST_").Build()
	require.NoError(t, err)

	debug, err := cfg.GetBool("injector:debug")
	require.NoError(t, err)
	assert.True(t, debug)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"debug":false}`), 0o644))

	cfg, err := NewConfigurationBuilder().AddJsonFile(path).Build()
	require.NoError(t, err)
	assert.Equal(t, "false", cfg.Get("debug"))

	require.NoError(t, os.WriteFile(path, []byte(`{"debug":true}`), 0o644))
	require.NoError(t, Reload(cfg))
	assert.Equal(t, "true", cfg.Get("debug"))

	assert.Error(t, Reload(FromMap(nil)))
}

func BenchmarkConfigGet(b *testing.B) {
	cfg, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
		},
	}).Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg.Get("server:host")
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration("", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = Duration("1m30s", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = Duration("soon", 0)
	assert.Error(t, err)
}
