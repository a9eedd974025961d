package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// OverflowPolicy 决定异步队列满时 WriteLog 的行为
type OverflowPolicy int

const (
	// OverflowBlock 等待队列腾出空间
	OverflowBlock OverflowPolicy = iota
	// OverflowDrop 丢弃当前条目并计数
	OverflowDrop
)

// AsyncWriter 把日志条目放进队列，由后台协程格式化后写出
type AsyncWriter struct {
	writer    io.Writer
	formatter Formatter
	policy    OverflowPolicy

	queue   chan *LogEntry
	done    sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	onError atomic.Pointer[func(error)]
}

// NewAsyncWriter 创建异步写入器，队列满时阻塞调用方
func NewAsyncWriter(writer io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	return NewAsyncWriterWithPolicy(writer, formatter, bufferSize, OverflowBlock)
}

// NewAsyncWriterWithPolicy 创建异步写入器并指定队列满时的策略
func NewAsyncWriterWithPolicy(writer io.Writer, formatter Formatter, bufferSize int, policy OverflowPolicy) *AsyncWriter {
	if bufferSize < 0 {
		bufferSize = 0
	}
	w := &AsyncWriter{
		writer:    writer,
		formatter: formatter,
		policy:    policy,
		queue:     make(chan *LogEntry, bufferSize),
	}
	w.done.Add(1)
	go w.drain()
	return w
}

// WriteLog 入队一条日志。Close 之后的写入直接丢弃，不计入 Dropped。
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	if w.policy == OverflowDrop {
		select {
		case w.queue <- entry:
		default:
			w.dropped.Add(1)
		}
		return
	}
	w.queue <- entry
}

// Dropped 返回因队列已满被丢弃的条目数
func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close 停止接收新条目，并等待队列中已有的条目写完
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.done.Wait()
	if n := w.Dropped(); n > 0 {
		w.report(fmt.Errorf("dropped %d entries", n))
	}
	return nil
}

// SetErrorHandler 设置格式化或写出失败时的回调，默认打印到 stderr
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	if handler == nil {
		w.onError.Store(nil)
		return
	}
	w.onError.Store(&handler)
}

func (w *AsyncWriter) drain() {
	defer w.done.Done()

	for entry := range w.queue {
		data, err := w.formatter.Format(entry)
		if err != nil {
			w.report(fmt.Errorf("format: %w", err))
			continue
		}
		if n := len(data); n == 0 || data[n-1] != '\n' {
			data = append(data, '\n')
		}
		if _, err := w.writer.Write(data); err != nil {
			w.report(fmt.Errorf("write: %w", err))
		}
	}
}

func (w *AsyncWriter) report(err error) {
	if h := w.onError.Load(); h != nil {
		(*h)(err)
		return
	}
	fmt.Fprintf(os.Stderr, "logging: async writer %v\n", err)
}
