package core

import (
	"fmt"

	"github.com/gocrud/ginject/di"
)

// Extension 应用程序扩展，需要实现 di.Module 或 AppConfigurator（或两者）
type Extension interface {
	// Name 用于日志和错误信息
	Name() string
}

// AppConfigurator 在构建阶段配置应用，例如注册选项、添加托管服务
type AppConfigurator interface {
	ConfigureBuilder(ctx *BuildContext)
}

func validateExtension(ext Extension) {
	_, isModule := ext.(di.Module)
	_, isAppConfigurator := ext.(AppConfigurator)

	if !isModule && !isAppConfigurator {
		panic(fmt.Sprintf("core: extension '%s' implements neither di.Module nor AppConfigurator", ext.Name()))
	}
}
