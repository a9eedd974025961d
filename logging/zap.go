package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 将日志转发到 zap
type ZapLoggerProvider struct {
	logger *zap.Logger
	level  atomic.Int32
}

// NewZapLoggerProvider 使用已有的 zap.Logger
func NewZapLoggerProvider(logger *zap.Logger) *ZapLoggerProvider {
	p := &ZapLoggerProvider{logger: logger}
	p.level.Store(int32(LogLevelInfo))
	return p
}

// NewZapJSONLogger 创建写到 stdout 的 JSON zap.Logger，级别由 provider 控制
func NewZapJSONLogger() *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "category",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		zap.DebugLevel,
	)
	return zap.New(core)
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	z := p.logger
	if category != "" {
		z = z.Named(category)
	}
	return newEntryLogger(category, &p.level, func(entry *LogEntry) {
		writeZap(z, entry)
	})
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.Store(int32(level))
}

// Close 刷新 zap 缓冲
func (p *ZapLoggerProvider) Close() error {
	_ = p.logger.Sync()
	return nil
}

func writeZap(z *zap.Logger, entry *LogEntry) {
	fields := make([]zap.Field, 0, len(entry.Fields))
	for _, f := range entry.Fields {
		if err, ok := f.Value.(error); ok {
			fields = append(fields, zap.NamedError(f.Key, err))
			continue
		}
		fields = append(fields, zap.Any(f.Key, f.Value))
	}

	if ce := z.Check(zapLevel(entry.Level), entry.Message); ce != nil {
		ce.Time = entry.Time
		ce.Write(fields...)
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// Fatal 由 entryLogger 自行退出，这里不触发 zap 的 os.Exit
		return zapcore.ErrorLevel
	}
}
