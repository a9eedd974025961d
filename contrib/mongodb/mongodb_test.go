package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/inject"
)

func TestModuleFromSettings(t *testing.T) {
	settings := config.FromMap(map[string]any{
		"injector": map[string]any{"modules": []any{"mongodb"}},
		"mongodb": map[string]any{
			"uri":             "mongodb://localhost:27017",
			"database":        "ginject",
			"max_pool_size":   10,
			"min_pool_size":   2,
			"connect_timeout": "2s",
		},
	})

	app := inject.New(settings, nil)
	require.NoError(t, app.Ready(nil))

	db := di.MustResolve[*mongo.Database](app.Container())
	assert.Equal(t, "ginject", db.Name())
	assert.Same(t, di.MustResolve[*mongo.Client](app.Container()), db.Client())

	require.NoError(t, app.Close())
}

func TestClientOptions(t *testing.T) {
	opts, err := Options{
		URI:            "mongodb://db:27017",
		Username:       "app",
		Password:       "secret",
		MaxPoolSize:    20,
		ConnectTimeout: "3s",
	}.clientOptions()
	require.NoError(t, err)

	require.NotNil(t, opts.MaxPoolSize)
	assert.EqualValues(t, 20, *opts.MaxPoolSize)
	assert.Nil(t, opts.MinPoolSize)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "app", opts.Auth.Username)
	assert.Equal(t, []string{"db:27017"}, opts.Hosts)

	_, err = Options{URI: "mongodb://db", ConnectTimeout: "eventually"}.clientOptions()
	assert.Error(t, err)
}

func TestModuleInvalidSettings(t *testing.T) {
	for _, section := range []map[string]any{
		{"uri": "mongodb://localhost", "database": ""},
		{"uri": "", "database": "ginject"},
		{"uri": "mongodb://localhost", "database": "ginject", "min_pool_size": 5, "max_pool_size": 1},
		{"uri": "postgres://localhost", "database": "ginject"},
	} {
		app := inject.New(config.FromMap(map[string]any{"mongodb": section}), nil, inject.WithModules(&Module{}))
		assert.Error(t, app.Ready(nil), "%v", section)
	}
}
