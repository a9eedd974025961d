// Package ginject 是应用入口：NewApplicationBuilder 组装注入器、Web 主机与定时任务。
package ginject

import "github.com/gocrud/ginject/core"

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *core.ApplicationBuilder {
	return core.NewApplicationBuilder()
}
