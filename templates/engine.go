// Package templates 基于 html/template 渲染页面，并合并上下文处理器的输出。
package templates

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/gocrud/ginject/views"
)

// Processor 上下文处理器的最终形式
type Processor = func(c *gin.Context) map[string]any

// Engine 模板引擎。ContextProcessors 在启动时可被替换为注入后的版本。
type Engine struct {
	ContextProcessors []any

	mu   sync.RWMutex
	tmpl *template.Template
}

// New 创建模板引擎
func New(processors ...any) *Engine {
	return &Engine{
		ContextProcessors: processors,
		tmpl:              template.New(""),
	}
}

// Parse 添加命名模板
func (e *Engine) Parse(name, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tmpl == nil {
		e.tmpl = template.New("")
	}
	if _, err := e.tmpl.New(name).Parse(text); err != nil {
		return fmt.Errorf("templates: parse %s: %w", name, err)
	}
	return nil
}

// Context 依次执行上下文处理器并合并结果，后面的覆盖前面的
func (e *Engine) Context(c *gin.Context) (map[string]any, error) {
	ctx := make(map[string]any)
	for _, p := range e.ContextProcessors {
		fn, ok := p.(Processor)
		if !ok {
			return nil, fmt.Errorf("templates: context processor %T is not callable, was it processed by the injector?", p)
		}
		for k, v := range fn(c) {
			ctx[k] = v
		}
		if c.IsAborted() {
			return nil, fmt.Errorf("templates: context processor %T aborted the request", p)
		}
	}
	return ctx, nil
}

// Render 合并处理器输出与 data 后渲染模板
func (e *Engine) Render(c *gin.Context, status int, name string, data map[string]any) {
	ctx, err := e.Context(c)
	if err != nil {
		if !c.IsAborted() {
			c.AbortWithError(http.StatusInternalServerError, err)
		} else {
			c.Error(err)
		}
		return
	}
	for k, v := range data {
		ctx[k] = v
	}

	e.mu.RLock()
	tmpl := e.tmpl
	e.mu.RUnlock()

	c.Render(status, render.HTML{Template: tmpl, Name: name, Data: ctx})
}

// CSRF 内置处理器，向模板暴露 csrf_token
func CSRF(c *gin.Context) map[string]any {
	return map[string]any{"csrf_token": views.CSRFToken(c)}
}
