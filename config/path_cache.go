package config

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// PathCache 缓存配置路径解析结果
type PathCache struct {
	cache *xsync.MapOf[string, []string]
}

// NewPathCache 创建路径缓存
func NewPathCache() *PathCache {
	return &PathCache{cache: xsync.NewMapOf[string, []string]()}
}

// GetPathSegments 获取路径片段，支持 : 和 . 作为分隔符
func (c *PathCache) GetPathSegments(path string) []string {
	parts, _ := c.cache.LoadOrCompute(path, func() []string {
		return strings.FieldsFunc(path, func(r rune) bool { return r == ':' || r == '.' })
	})
	return parts
}

var globalPathCache = NewPathCache()
