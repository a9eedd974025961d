package views

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

const csrfContextKey = "csrf_token"

// CSRFOptions CSRF 校验选项
type CSRFOptions struct {
	CookieName string
	HeaderName string
	FormField  string
	Secure     bool
}

// CSRFExempter 由回调实现以声明跳过 CSRF 校验
type CSRFExempter interface {
	IsCSRFExempt() bool
}

// IsExempt 判断回调是否跳过 CSRF 校验
func IsExempt(cb any) bool {
	e, ok := cb.(CSRFExempter)
	return ok && e.IsCSRFExempt()
}

// ExemptHandler 标记为跳过 CSRF 校验的处理函数
type ExemptHandler struct {
	Handler gin.HandlerFunc
}

// Exempt 将处理函数标记为跳过 CSRF 校验
func Exempt(h gin.HandlerFunc) *ExemptHandler {
	return &ExemptHandler{Handler: h}
}

func (h *ExemptHandler) Handle(c *gin.Context) { h.Handler(c) }

func (h *ExemptHandler) IsCSRFExempt() bool { return true }

// CSRFGuard 返回 urls.WithRouteMiddleware 使用的中间件工厂，豁免的回调不做校验
func CSRFGuard(opts ...CSRFOptions) func(cb any) []gin.HandlerFunc {
	o := CSRFOptions{
		CookieName: "csrftoken",
		HeaderName: "X-CSRFToken",
		FormField:  "csrfmiddlewaretoken",
	}
	if len(opts) > 0 {
		o = opts[0]
	}

	guard := csrfMiddleware(o)
	return func(cb any) []gin.HandlerFunc {
		if IsExempt(cb) {
			return nil
		}
		return []gin.HandlerFunc{guard}
	}
}

// CSRFToken 返回当前请求的 token，供模板使用
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

func csrfMiddleware(o CSRFOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(o.CookieName)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			if err != nil || cookie == "" {
				cookie = newToken()
				c.SetCookie(o.CookieName, cookie, 0, "/", "", o.Secure, false)
			}
			c.Set(csrfContextKey, cookie)
			c.Next()
			return
		}

		submitted := c.GetHeader(o.HeaderName)
		if submitted == "" && o.FormField != "" {
			submitted = c.PostForm(o.FormField)
		}
		if err != nil || cookie == "" || submitted == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "CSRF verification failed."})
			return
		}

		c.Set(csrfContextKey, cookie)
		c.Next()
	}
}

func newToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
