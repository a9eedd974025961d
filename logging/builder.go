package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Settings 对应配置中的 logging 节
//
//	logging:
//	  level: debug
//	  format: text        # text | json | none
//	  file:
//	    path: logs/app.log
//	    max_size: 100
type Settings struct {
	Level  string       `json:"level"`
	Format string       `json:"format" validate:"omitempty,oneof=text json none"`
	File   FileSettings `json:"file"`
}

// FileSettings 滚动文件设置，Path 为空时不写文件
type FileSettings struct {
	Path         string `json:"path"`
	MaxSize      int    `json:"max_size" validate:"min=0"`
	MaxBackups   int    `json:"max_backups" validate:"min=0"`
	MaxAge       int    `json:"max_age" validate:"min=0"`
	Compress     *bool  `json:"compress"`
	DropWhenFull bool   `json:"drop_when_full"`
}

// LoggingBuilder 收集日志提供者与最低级别
type LoggingBuilder struct {
	mu        sync.Mutex
	providers []LoggerProvider
	level     LogLevel
}

func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{level: LogLevelInfo}
}

func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	b.level = level
	b.mu.Unlock()
	return b
}

func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	b.providers = append(b.providers, provider)
	b.mu.Unlock()
	return b
}

// HasProviders 报告是否已经添加过提供者
func (b *LoggingBuilder) HasProviders() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.providers) > 0
}

// AddConsole 添加彩色文本控制台输出，不传选项时写 stdout
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  time.DateTime,
		ColorOutput:      true,
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile 添加滚动文件输出，默认单文件 50MB、保留 7 份 14 天并压缩
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	opts := FileLoggerOptions{MaxSize: 50, MaxBackups: 7, MaxAge: 14, Compress: true}
	if len(options) > 0 {
		opts = options[0]
	}
	opts.Path = path
	return b.AddProvider(NewFileLoggerProvider(opts))
}

// AddZap 转发到 zap，logger 为 nil 时输出 JSON 到 stdout
func (b *LoggingBuilder) AddZap(logger *zap.Logger) *LoggingBuilder {
	if logger == nil {
		logger = NewZapJSONLogger()
	}
	return b.AddProvider(NewZapLoggerProvider(logger))
}

// Apply 按 logging 节调整级别与输出，Level 为空时保留当前级别。
// 已经手动添加过提供者时不再补默认的控制台输出，文件输出总会追加。
func (b *LoggingBuilder) Apply(s Settings) error {
	if s.Level != "" {
		level, err := ParseLevel(s.Level)
		if err != nil {
			return err
		}
		b.SetMinimumLevel(level)
	}

	if !b.HasProviders() {
		switch s.Format {
		case "", "text":
			b.AddConsole()
		case "json":
			b.AddZap(nil)
		case "none":
		default:
			return fmt.Errorf("logging: unknown format %q", s.Format)
		}
	}

	if f := s.File; f.Path != "" {
		opts := FileLoggerOptions{
			MaxSize:      orDefault(f.MaxSize, 50),
			MaxBackups:   orDefault(f.MaxBackups, 7),
			MaxAge:       orDefault(f.MaxAge, 14),
			Compress:     f.Compress == nil || *f.Compress,
			DropWhenFull: f.DropWhenFull,
		}
		b.AddFile(f.Path, opts)
	}
	return nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Build 创建工厂，此后对构建器的修改不影响已创建的工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.Lock()
	defer b.mu.Unlock()

	return newLoggerFactory(b.level, b.providers)
}
