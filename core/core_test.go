package core

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ginject/commands"
	"github.com/gocrud/ginject/config"
	"github.com/gocrud/ginject/cron"
	"github.com/gocrud/ginject/di"
	"github.com/gocrud/ginject/hosting"
	"github.com/gocrud/ginject/logging"
	"github.com/gocrud/ginject/urls"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type Answer struct {
	Word   string
	Number int
}

func answerModule(b *di.Binder) {
	di.Register[*Answer](b, di.WithValue(&Answer{Word: "Fortytwo", Number: 42}))
}

func fortytwo(c *gin.Context, a *Answer) {
	c.String(http.StatusOK, "%s %d", a.Word, a.Number)
}

type siteOptions struct {
	Title string `json:"title" validate:"required"`
}

func newBuilder(settings map[string]any) *ApplicationBuilder {
	base := map[string]any{
		"server":  map[string]any{"port": 0},
		"logging": map[string]any{"level": "error"},
	}
	return NewApplicationBuilder().
		ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
			cb.AddInMemory(base).AddInMemory(settings)
		}).
		ConfigureLogging(func(lb *logging.LoggingBuilder) {
			lb.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
		}).
		ConfigureModules(answerModule).
		ConfigureURLs(urls.Include("", urls.Path("answer", fortytwo, "answer")))
}

func TestBuildServesInjectedRoutes(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	app, err := newBuilder(nil).Build()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/answer", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Fortytwo 42", w.Body.String())

	w = httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ginject_request_scopes_total")

	// CSRF 默认开启
	w = httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/answer", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err = di.Resolve[logging.LoggerFactory](app.Services())
	assert.NoError(t, err)
}

func TestBuildWithoutCSRF(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	app, err := newBuilder(map[string]any{"server": map[string]any{"csrf": false}}).Build()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/answer", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfigureOptions(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	b := newBuilder(map[string]any{"site": map[string]any{"title": "ginject"}})
	AddOptions[siteOptions](b, "site")
	app, err := b.Build()
	require.NoError(t, err)

	opts, err := di.Resolve[siteOptions](app.Services())
	require.NoError(t, err)
	assert.Equal(t, "ginject", opts.Title)

	b = newBuilder(map[string]any{"site": map[string]any{"title": ""}})
	AddOptions[siteOptions](b, "site")
	_, err = b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"site"`)
}

func TestBuildErrors(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	_, err := newBuilder(map[string]any{"injector": map[string]any{"modules": []any{"nope"}}}).Build()
	assert.Error(t, err)

	_, err = newBuilder(map[string]any{"logging": map[string]any{"level": "chatty"}}).Build()
	assert.Error(t, err)

	_, err = newBuilder(map[string]any{"logging": map[string]any{"format": "xml"}}).Build()
	assert.ErrorContains(t, err, "core: logging")

	_, err = newBuilder(map[string]any{"server": map[string]any{"port": "http"}}).Build()
	assert.Error(t, err)

	_, err = newBuilder(map[string]any{"server": map[string]any{"read_timeout": "soon"}}).Build()
	assert.ErrorContains(t, err, "server:read_timeout")

	_, err = newBuilder(nil).
		ConfigureURLs(urls.Include("", urls.Path("bad", func(n int) {}))).
		Build()
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	var jobRuns, cleaned atomic.Int32
	started := make(chan struct{})

	app, err := newBuilder(nil).
		ConfigureCron(func(cb *cron.Builder) {
			cb.AddJob("@every 1h", "answer", func(a *Answer) { jobRuns.Add(1) })
		}).
		Configure(func(ctx *BuildContext) {
			ctx.AddHostedService(hosting.NewFuncService("probe", func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return nil
			}))
			ctx.SetCleanup("counter", func() { cleaned.Add(1) })
		}).
		UseShutdownTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.RunAsync(context.Background()) }()

	<-started
	require.Eventually(t, func() bool { return app.Host().Address() != "" }, 5*time.Second, 10*time.Millisecond)

	_, port, err := net.SplitHostPort(app.Host().Address())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/answer")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "Fortytwo 42", string(body))

	assert.Error(t, app.RunAsync(context.Background()))

	require.NoError(t, app.Stop(context.Background()))
	require.NoError(t, app.Stop(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
	assert.EqualValues(t, 1, cleaned.Load())
	assert.Zero(t, jobRuns.Load())
}

func TestRunStopsOnServiceFailure(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	boom := errors.New("boom")
	app, err := newBuilder(nil).
		Configure(func(ctx *BuildContext) {
			ctx.AddHostedService(hosting.NewFuncService("failing", func(context.Context) error { return boom }))
		}).
		Build()
	require.NoError(t, err)

	err = app.RunAsync(context.Background())
	assert.ErrorIs(t, err, boom)
}

type answerCommand struct {
	Answer *Answer `di:""`
}

var commandAnswer atomic.Pointer[Answer]

func (cmd *answerCommand) RegisterFlags() *cobra.Command {
	return &cobra.Command{Short: "print the answer"}
}

func (cmd *answerCommand) Run(c *cobra.Command, args []string) error {
	commandAnswer.Store(cmd.Answer)
	return nil
}

func TestRunCommand(t *testing.T) {
	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)
	commands.Register("core-answer", reflect.TypeOf(&answerCommand{}))

	app, err := newBuilder(nil).Build()
	require.NoError(t, err)

	require.NoError(t, app.RunCommand(context.Background(), []string{"core-answer"}))
	require.NotNil(t, commandAnswer.Load())
	assert.Equal(t, 42, commandAnswer.Load().Number)

	assert.Error(t, app.RunCommand(context.Background(), []string{"missing"}))
}

type emptyExtension struct{}

func (e *emptyExtension) Name() string { return "empty" }

type moduleExtension struct{}

func (e *moduleExtension) Name() string           { return "module" }
func (e *moduleExtension) Configure(b *di.Binder) { answerModule(b) }

type fullExtension struct {
	configured bool
}

func (e *fullExtension) Name() string                       { return "full" }
func (e *fullExtension) Configure(b *di.Binder)             {}
func (e *fullExtension) ConfigureBuilder(ctx *BuildContext) { e.configured = true }

func TestAddExtension(t *testing.T) {
	assert.PanicsWithValue(t,
		"core: extension 'empty' implements neither di.Module nor AppConfigurator",
		func() { NewApplicationBuilder().AddExtension(&emptyExtension{}) })

	b := NewApplicationBuilder()
	full := &fullExtension{}
	b.AddExtension(&moduleExtension{}).AddExtension(full)
	assert.Len(t, b.modules, 2)
	assert.Len(t, b.configurators, 1)

	restore := commands.SetLoader(commands.DefaultLoader)
	t.Cleanup(restore)

	app, err := NewApplicationBuilder().
		ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
			cb.AddInMemory(map[string]any{"server": map[string]any{"port": 0}})
		}).
		ConfigureLogging(func(lb *logging.LoggingBuilder) {
			lb.AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard})
		}).
		AddExtension(&moduleExtension{}).
		AddExtension(full).
		Build()
	require.NoError(t, err)
	assert.True(t, full.configured)

	a, err := di.Resolve[*Answer](app.Services())
	require.NoError(t, err)
	assert.Equal(t, "Fortytwo", a.Word)
}
