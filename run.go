package ginject

import (
	"context"
	"os"

	"github.com/gocrud/ginject/core"
)

// Run 构建并运行应用。带参数启动时执行对应的管理命令而不是启动服务：
//
//	./app            启动 Web 主机和定时任务
//	./app migrate    执行已注册的 migrate 命令
func Run(b *core.ApplicationBuilder) error {
	return RunArgs(context.Background(), b, os.Args[1:])
}

// RunArgs 同 Run，参数由调用方提供
func RunArgs(ctx context.Context, b *core.ApplicationBuilder, args []string) error {
	app, err := b.Build()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return app.RunCommand(ctx, args)
	}
	return app.RunAsync(ctx)
}
