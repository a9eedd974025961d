package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Load 将指定节绑定到 T 并执行 `validate` 标签校验，section 为空时绑定整个配置
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	if err := cfg.Bind(section, &t); err != nil {
		return t, err
	}
	if err := validate.Struct(&t); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			// T 不是结构体，无需校验
			return t, nil
		}
		return t, fmt.Errorf("config: invalid section %q: %w", section, err)
	}
	return t, nil
}

// Duration 解析 "5s"、"1h30m" 形式的时长，空字符串返回 def
func Duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	return d, nil
}
