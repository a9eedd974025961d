package redis

import (
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
)

func TestModuleFromSettings(t *testing.T) {
	settings := config.FromMap(map[string]any{
		"injector": map[string]any{"modules": []any{"redis"}},
		"redis": map[string]any{
			"addr":         "localhost:6390",
			"db":           2,
			"dial_timeout": "1s",
		},
	})

	app := inject.New(settings, nil)
	require.NoError(t, app.Ready(nil))
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	client, err := di.Resolve[*goredis.Client](app.Container())
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "localhost:6390", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
}

func TestModuleExplicitOptions(t *testing.T) {
	m := &Module{Options: &Options{Addr: "cache:6379"}}
	app := inject.New(nil, nil, inject.WithModules(m))
	require.NoError(t, app.Ready(nil))

	client := di.MustResolve[*goredis.Client](app.Container())
	assert.Equal(t, "cache:6379", client.Options().Addr)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestModuleInvalidSettings(t *testing.T) {
	for _, redisSection := range []map[string]any{
		{"addr": ""},
		{"addr": "localhost:6379", "db": -1},
		{"addr": "localhost:6379", "read_timeout": "later"},
	} {
		settings := config.FromMap(map[string]any{"redis": redisSection})
		app := inject.New(settings, nil, inject.WithModules(&Module{}))
		assert.Error(t, app.Ready(nil), "%v", redisSection)
	}

	app := inject.New(config.FromMap(nil), nil, inject.WithModules(&Module{}))
	assert.Error(t, app.Ready(nil))
}
