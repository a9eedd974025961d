package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Formatter 将日志条目编码为一行输出
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// LogEntry 日志条目
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// TextFormatter 输出 logfmt 风格的文本：
//
//	2006-01-02 15:04:05 INFO [inject] injector ready modules=2 debug=false
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  time.DateTime,
	}
}

func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if f.IncludeTimestamp {
		buf.WriteString(entry.Time.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}
	if f.ColorOutput {
		buf.WriteString(colorize(entry.Level, entry.Level.String()))
	} else {
		buf.WriteString(entry.Level.String())
	}
	if entry.Category != "" {
		fmt.Fprintf(buf, " [%s]", entry.Category)
	}
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	for _, field := range entry.Fields {
		buf.WriteByte(' ')
		buf.WriteString(field.Key)
		buf.WriteByte('=')
		buf.WriteString(textValue(field.Value))
	}
	buf.WriteByte('\n')

	return bytes.Clone(buf.Bytes()), nil
}

// textValue 含空白或引号的值加引号
func textValue(v any) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// JsonFormatter 每条日志一个 JSON 对象
type JsonFormatter struct {
	TimestampFormat string
}

// NewJsonFormatter 创建 JSON 格式化器
func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
}

func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	data := make(map[string]any, 4+len(entry.Fields))
	for _, field := range entry.Fields {
		if err, ok := field.Value.(error); ok {
			data[field.Key] = err.Error()
			continue
		}
		data[field.Key] = field.Value
	}
	// 固定字段不被同名 field 覆盖
	data["ts"] = entry.Time.Format(f.TimestampFormat)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Category != "" {
		data["category"] = entry.Category
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
