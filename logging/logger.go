package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel 日志级别
type LogLevel int32

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var levelColors = [...]string{"\033[90m", "\033[36m", "\033[32m", "\033[33m", "\033[31m", "\033[35m"}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel 不区分大小写，空串视为 INFO，WARNING 等同 WARN
func ParseLevel(s string) (LogLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "":
		return LogLevelInfo, nil
	case "WARNING":
		return LogLevelWarn, nil
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), nil
		}
	}
	return LogLevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// Field 结构化字段
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err 以 "error" 为键
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Logger 日志接口
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal 写出后退出进程
	Fatal(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	Enabled(level LogLevel) bool
	WithFields(fields ...Field) Logger
	WithCategory(category string) Logger
}

// LoggerFactory 按类别创建 Logger，日志同时写到所有提供者
type LoggerFactory interface {
	CreateLogger(category string) Logger
	AddProvider(provider LoggerProvider)
	// SetMinimumLevel 对已经创建的 Logger 同样生效
	SetMinimumLevel(level LogLevel)
	// Close 刷新并关闭实现了 Close 的提供者
	Close() error
}

// LoggerProvider 一种输出目标
type LoggerProvider interface {
	CreateLogger(category string) Logger
	SetMinimumLevel(level LogLevel)
}

// leveled 由 Log 派生出按级别命名的方法
type leveled struct {
	log func(level LogLevel, msg string, fields ...Field)
}

func (l leveled) Trace(msg string, fields ...Field) { l.log(LogLevelTrace, msg, fields...) }
func (l leveled) Debug(msg string, fields ...Field) { l.log(LogLevelDebug, msg, fields...) }
func (l leveled) Info(msg string, fields ...Field)  { l.log(LogLevelInfo, msg, fields...) }
func (l leveled) Warn(msg string, fields ...Field)  { l.log(LogLevelWarn, msg, fields...) }
func (l leveled) Error(msg string, fields ...Field) { l.log(LogLevelError, msg, fields...) }

func (l leveled) Fatal(msg string, fields ...Field) {
	l.log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

type loggerFactory struct {
	mu        sync.RWMutex
	providers []LoggerProvider
	level     atomic.Int32
}

func newLoggerFactory(level LogLevel, providers []LoggerProvider) *loggerFactory {
	f := &loggerFactory{}
	f.level.Store(int32(level))
	for _, p := range providers {
		f.AddProvider(p)
	}
	return f
}

func (f *loggerFactory) CreateLogger(category string) Logger {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sinks := make([]Logger, len(f.providers))
	for i, p := range f.providers {
		sinks[i] = p.CreateLogger(category)
	}
	return newFanout(sinks, &f.level, nil)
}

func (f *loggerFactory) AddProvider(provider LoggerProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider.SetMinimumLevel(LogLevel(f.level.Load()))
	f.providers = append(f.providers, provider)
}

func (f *loggerFactory) SetMinimumLevel(level LogLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level.Store(int32(level))
	for _, p := range f.providers {
		p.SetMinimumLevel(level)
	}
}

func (f *loggerFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	for _, p := range f.providers {
		c, ok := p.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fanout 把一条日志交给每个提供者创建的 Logger
type fanout struct {
	leveled
	sinks  []Logger
	level  *atomic.Int32
	fields []Field
}

func newFanout(sinks []Logger, level *atomic.Int32, fields []Field) *fanout {
	l := &fanout{sinks: sinks, level: level, fields: fields}
	l.leveled = leveled{log: l.Log}
	return l
}

func (l *fanout) Enabled(level LogLevel) bool {
	if level < LogLevel(l.level.Load()) {
		return false
	}
	for _, s := range l.sinks {
		if s.Enabled(level) {
			return true
		}
	}
	return false
}

func (l *fanout) Log(level LogLevel, msg string, fields ...Field) {
	if level < LogLevel(l.level.Load()) {
		return
	}
	all := mergeFields(l.fields, fields)
	for _, s := range l.sinks {
		s.Log(level, msg, all...)
	}
}

func (l *fanout) WithFields(fields ...Field) Logger {
	return newFanout(l.sinks, l.level, mergeFields(l.fields, fields))
}

func (l *fanout) WithCategory(category string) Logger {
	sinks := make([]Logger, len(l.sinks))
	for i, s := range l.sinks {
		sinks[i] = s.WithCategory(category)
	}
	return newFanout(sinks, l.level, l.fields)
}

// entryLogger 组装 LogEntry 交给 sink。级别在写入时读取，
// 提供者的 SetMinimumLevel 对已创建的 Logger 同样生效。
type entryLogger struct {
	leveled
	category string
	fields   []Field
	level    *atomic.Int32
	sink     func(*LogEntry)
}

func newEntryLogger(category string, level *atomic.Int32, sink func(*LogEntry)) *entryLogger {
	return newEntryLoggerWith(category, nil, level, sink)
}

func newEntryLoggerWith(category string, fields []Field, level *atomic.Int32, sink func(*LogEntry)) *entryLogger {
	l := &entryLogger{category: category, fields: fields, level: level, sink: sink}
	l.leveled = leveled{log: l.Log}
	return l
}

func (l *entryLogger) Enabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *entryLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	l.sink(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *entryLogger) WithFields(fields ...Field) Logger {
	return newEntryLoggerWith(l.category, mergeFields(l.fields, fields), l.level, l.sink)
}

func (l *entryLogger) WithCategory(category string) Logger {
	return newEntryLoggerWith(category, l.fields, l.level, l.sink)
}

// mergeFields 有新增字段时分配新切片，派生的 Logger 之间不共享底层数组
func mergeFields(base, extra []Field) []Field {
	if len(extra) == 0 {
		return base
	}
	out := make([]Field, 0, len(base)+len(extra))
	return append(append(out, base...), extra...)
}

func colorize(level LogLevel, text string) string {
	if level < 0 || int(level) >= len(levelColors) {
		return text
	}
	return levelColors[level] + text + "\033[0m"
}
