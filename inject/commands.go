package inject

import (
	"context"

	"github.com/gocrud/ginject/commands"
	"github.com/gocrud/ginject/di"
)

// PatchCommandLoader 让管理命令通过容器创建，返回恢复原 Loader 的函数
func PatchCommandLoader(c di.Container) (restore func()) {
	return commands.SetLoader(func(name string, class any) (commands.Command, error) {
		instance, err := di.CreateObject(context.Background(), c, class, nil)
		if err != nil {
			return nil, err
		}
		return commands.AsCommand(name, instance)
	})
}
