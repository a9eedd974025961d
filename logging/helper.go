package logging

import "io"

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	return NewLoggingBuilder().AddConsole().Build().CreateLogger("default")
}

// NewWriterLogger 创建写入 w 的无颜色文本 Logger
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return NewLoggingBuilder().
		SetMinimumLevel(level).
		AddConsole(ConsoleLoggerOptions{Output: w}).
		Build().
		CreateLogger("")
}

// Discard 丢弃所有日志
func Discard() Logger {
	return NewWriterLogger(io.Discard, LogLevelFatal+1)
}
