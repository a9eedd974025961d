package database

import (
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/gocrud/ginject/logging"
)

// gormWriter 把 gorm 的 Printf 输出转给 logging.Logger
type gormWriter struct {
	logger logging.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logger.Info(fmt.Sprintf(format, args...))
}

func newGormLogger(logger logging.Logger, level string, slow time.Duration) gormlogger.Interface {
	return gormlogger.New(gormWriter{logger: logger}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
