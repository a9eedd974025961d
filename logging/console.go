package logging

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者，同步写出文本格式
type ConsoleLoggerProvider struct {
	formatter *TextFormatter
	output    io.Writer
	level     atomic.Int32
	mu        sync.Mutex
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	p := &ConsoleLoggerProvider{
		formatter: &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		},
		output: options.Output,
	}
	p.level.Store(int32(LogLevelInfo))
	return p
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return newEntryLogger(category, &p.level, p.write)
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.Store(int32(level))
}

func (p *ConsoleLoggerProvider) write(entry *LogEntry) {
	data, err := p.formatter.Format(entry)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.output.Write(data)
}
