package logging

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/natefinch/lumberjack"
)

// FileLoggerOptions 文件日志选项，滚动由 lumberjack 负责
type FileLoggerOptions struct {
	Path       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	// Formatter 默认为 JSON
	Formatter Formatter
	// BufferSize 异步队列长度
	BufferSize int
	// DropWhenFull 队列满时丢弃日志而不是阻塞请求
	DropWhenFull bool
}

// FileLoggerProvider 文件日志提供者
type FileLoggerProvider struct {
	options FileLoggerOptions
	level   atomic.Int32

	once   sync.Once
	sink   *lumberjack.Logger
	writer *AsyncWriter
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.Formatter == nil {
		options.Formatter = NewJsonFormatter()
	}
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	p := &FileLoggerProvider{options: options}
	p.level.Store(int32(LogLevelInfo))
	return p
}

func (p *FileLoggerProvider) open() {
	p.once.Do(func() {
		if dir := filepath.Dir(p.options.Path); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		p.sink = &lumberjack.Logger{
			Filename:   p.options.Path,
			MaxSize:    p.options.MaxSize,
			MaxBackups: p.options.MaxBackups,
			MaxAge:     p.options.MaxAge,
			Compress:   p.options.Compress,
		}
		policy := OverflowBlock
		if p.options.DropWhenFull {
			policy = OverflowDrop
		}
		p.writer = NewAsyncWriterWithPolicy(p.sink, p.options.Formatter, p.options.BufferSize, policy)
	})
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.open()
	return newEntryLogger(category, &p.level, p.writer.WriteLog)
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.Store(int32(level))
}

// Close 刷新异步队列并关闭文件
func (p *FileLoggerProvider) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return err
	}
	return p.sink.Close()
}
