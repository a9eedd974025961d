package inject

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ginject/di"
)

type token struct{ n int }

type closingToken struct {
	closed int
}

func (c *closingToken) Close() error {
	c.closed++
	return nil
}

func keyFor(name string) di.ServiceKey {
	return di.ServiceKey{Type: reflect.TypeOf(&token{}), Name: name}
}

func counter() (di.Provider, *int) {
	calls := 0
	return func(ctx context.Context) (any, error) {
		calls++
		return &token{n: calls}, nil
	}, &calls
}

func TestRequestScopeCachesWithinBracket(t *testing.T) {
	scope := NewRequestScope(nil)
	provider, calls := counter()

	ctx := scope.Prepare(context.Background())
	defer scope.Cleanup(ctx)

	a, err := scope.Get(ctx, keyFor(""), provider)
	require.NoError(t, err)
	b, err := scope.Get(ctx, keyFor(""), provider)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, *calls)

	other, err := scope.Get(ctx, keyFor("other"), provider)
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestRequestScopeDistinctAcrossBrackets(t *testing.T) {
	scope := NewRequestScope(nil)
	provider, _ := counter()

	first := scope.Prepare(context.Background())
	a, err := scope.Get(first, keyFor(""), provider)
	require.NoError(t, err)
	scope.Cleanup(first)

	second := scope.Prepare(context.Background())
	defer scope.Cleanup(second)
	b, err := scope.Get(second, keyFor(""), provider)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}

func TestRequestScopeNestedPrepareShadows(t *testing.T) {
	scope := NewRequestScope(nil)
	provider, _ := counter()

	outer := scope.Prepare(context.Background())
	a, err := scope.Get(outer, keyFor(""), provider)
	require.NoError(t, err)

	inner := scope.Prepare(outer)
	b, err := scope.Get(inner, keyFor(""), provider)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	scope.Cleanup(inner)
	again, err := scope.Get(outer, keyFor(""), provider)
	require.NoError(t, err)
	assert.Same(t, a, again)
	scope.Cleanup(outer)
}

func TestRequestScopeMisuse(t *testing.T) {
	scope := NewRequestScope(nil)
	provider, calls := counter()

	_, err := scope.Get(context.Background(), keyFor(""), provider)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRequestScope))
	assert.True(t, strings.HasPrefix(err.Error(), "RequestScope.Get was called without binding to a request"))
	assert.Contains(t, err.Error(), "RequestMiddleware")

	ctx := scope.Prepare(context.Background())
	scope.Cleanup(ctx)
	_, err = scope.Get(ctx, keyFor(""), provider)
	assert.ErrorIs(t, err, ErrNoRequestScope)
	assert.Zero(t, *calls)
}

func TestRequestScopeProviderError(t *testing.T) {
	scope := NewRequestScope(nil)
	ctx := scope.Prepare(context.Background())
	defer scope.Cleanup(ctx)

	boom := errors.New("boom")
	_, err := scope.Get(ctx, keyFor(""), func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	provider, calls := counter()
	_, err = scope.Get(ctx, keyFor(""), provider)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
}

func TestRequestScopeCleanupClosesInstances(t *testing.T) {
	scope := NewRequestScope(nil)
	ctx := scope.Prepare(context.Background())

	closer := &closingToken{}
	_, err := scope.Get(ctx, keyFor("closer"), func(context.Context) (any, error) { return closer, nil })
	require.NoError(t, err)

	scope.Cleanup(ctx)
	scope.Cleanup(ctx)
	assert.Equal(t, 1, closer.closed)

	// 没有 bracket 的 context 直接忽略
	scope.Cleanup(context.Background())
}

type countingCloser struct {
	closed *atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func TestRequestScopeConcurrentGet(t *testing.T) {
	scope := NewRequestScope(nil)
	ctx := scope.Prepare(context.Background())

	var created, closed atomic.Int32
	provider := func(context.Context) (any, error) {
		created.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &countingCloser{closed: &closed}, nil
	}

	var mu sync.Mutex
	seen := make(map[any]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := scope.Get(ctx, keyFor(""), provider)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	scope.Cleanup(ctx)

	assert.Len(t, seen, 1)
	assert.EqualValues(t, 1, created.Load())
	assert.Equal(t, created.Load(), closed.Load())
}

// orderedCloser 关闭时检查它依赖的实例仍然打开
type orderedCloser struct {
	name   string
	dep    *orderedCloser
	closed bool
	log    *[]string
}

func (c *orderedCloser) Close() error {
	if c.dep != nil && c.dep.closed {
		*c.log = append(*c.log, c.name+" closed after "+c.dep.name)
	}
	c.closed = true
	*c.log = append(*c.log, c.name)
	return nil
}

func TestRequestScopeCleanupReverseOrder(t *testing.T) {
	scope := NewRequestScope(nil)

	for i := 0; i < 50; i++ {
		ctx := scope.Prepare(context.Background())
		var log []string

		base := func(context.Context) (any, error) {
			return &orderedCloser{name: "session", log: &log}, nil
		}
		dependent := func(ctx context.Context) (any, error) {
			dep, err := scope.Get(ctx, keyFor("session"), base)
			if err != nil {
				return nil, err
			}
			return &orderedCloser{name: "repository", dep: dep.(*orderedCloser), log: &log}, nil
		}

		_, err := scope.Get(ctx, keyFor("repository"), dependent)
		require.NoError(t, err)
		_, err = scope.Get(ctx, keyFor("session"), base)
		require.NoError(t, err)

		scope.Cleanup(ctx)
		require.Equal(t, []string{"repository", "session"}, log)
	}
}

func TestRequestScopeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same key within a bracket yields the same instance", prop.ForAll(
		func(ids []int) bool {
			scope := NewRequestScope(nil)
			ctx := scope.Prepare(context.Background())
			defer scope.Cleanup(ctx)

			first := make(map[int]any)
			for _, id := range ids {
				v, err := scope.Get(ctx, keyFor(strconv.Itoa(id)), func(context.Context) (any, error) { return &token{}, nil })
				if err != nil {
					return false
				}
				if prev, ok := first[id]; ok && prev != v {
					return false
				}
				first[id] = v
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.Property("later brackets never reuse an instance", prop.ForAll(
		func(brackets int) bool {
			scope := NewRequestScope(nil)
			seen := make(map[any]struct{})
			for i := 0; i < brackets; i++ {
				ctx := scope.Prepare(context.Background())
				v, err := scope.Get(ctx, keyFor(""), func(context.Context) (any, error) { return &token{}, nil })
				scope.Cleanup(ctx)
				if err != nil {
					return false
				}
				if _, dup := seen[v]; dup {
					return false
				}
				seen[v] = struct{}{}
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
