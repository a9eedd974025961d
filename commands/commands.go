// Package commands 管理命令注册表。命令类型通过 Loader 实例化，
// 注入框架启动后会替换 Loader，使命令也能声明依赖。
package commands

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cobra"
)

// Command 管理命令
type Command interface {
	// RegisterFlags 返回命令定义，flag 绑定到实例字段
	RegisterFlags() *cobra.Command
	Run(cmd *cobra.Command, args []string) error
}

// Loader 根据注册的类创建命令实例
type Loader func(name string, class any) (Command, error)

var (
	registry = xsync.NewMapOf[string, any]()

	loaderMu sync.RWMutex
	loader   Loader = DefaultLoader
)

// Register 注册命令类：无参构造函数或 reflect.Type
func Register(name string, class any) {
	if name == "" || class == nil {
		panic("commands: Register needs a name and a class")
	}
	registry.Store(name, class)
}

// Names 返回已注册的命令名（排序）
func Names() []string {
	var names []string
	registry.Range(func(name string, _ any) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// SetLoader 替换 Loader，返回恢复函数
func SetLoader(l Loader) (restore func()) {
	loaderMu.Lock()
	prev := loader
	loader = l
	loaderMu.Unlock()

	return func() {
		loaderMu.Lock()
		loader = prev
		loaderMu.Unlock()
	}
}

// Load 使用当前 Loader 创建命令
func Load(name string) (Command, error) {
	class, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("commands: unknown command %q", name)
	}

	loaderMu.RLock()
	l := loader
	loaderMu.RUnlock()

	return l(name, class)
}

// DefaultLoader 不经容器创建命令实例
func DefaultLoader(name string, class any) (Command, error) {
	var instance any
	if typ, ok := class.(reflect.Type); ok {
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		instance = reflect.New(typ).Interface()
	} else {
		fn := reflect.ValueOf(class)
		if fn.Kind() != reflect.Func || fn.Type().NumIn() != 0 || fn.Type().NumOut() == 0 {
			return nil, fmt.Errorf("commands: %s: %T needs injected arguments", name, class)
		}
		out := fn.Call(nil)
		if len(out) > 1 {
			if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
				return nil, fmt.Errorf("commands: %s: %w", name, err)
			}
		}
		instance = out[0].Interface()
	}

	return AsCommand(name, instance)
}

// AsCommand 检查实例是否实现 Command
func AsCommand(name string, instance any) (Command, error) {
	cmd, ok := instance.(Command)
	if !ok {
		return nil, fmt.Errorf("commands: %s: %T does not implement commands.Command", name, instance)
	}
	return cmd, nil
}

// NewRootCommand 加载所有已注册命令并挂到根命令下
func NewRootCommand(use string) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:           use,
		Short:         use + " runs management commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	for _, name := range Names() {
		command, err := Load(name)
		if err != nil {
			return nil, err
		}

		sub := command.RegisterFlags()
		if sub == nil {
			sub = &cobra.Command{}
		}
		if sub.Use == "" {
			sub.Use = name
		}
		sub.RunE = command.Run
		root.AddCommand(sub)
	}
	return root, nil
}

// Execute 以 args 运行命令
func Execute(ctx context.Context, args []string) error {
	root, err := NewRootCommand("manage")
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
