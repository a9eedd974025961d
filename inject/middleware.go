package inject

import "github.com/gin-gonic/gin"

// RequestMiddleware 为每个请求打开请求作用域并绑定当前请求，
// 处理链结束（包括 panic）后清理。
func RequestMiddleware(scope *RequestScope, module *RequestModule) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := scope.Prepare(c.Request.Context())
		defer scope.Cleanup(ctx)

		module.SetRequest(ctx, c)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
