package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"insight-service/pkg/config"
)

// Logger 日志服务，封装logrus，支持文件输出
type Logger struct {
	base *logrus.Logger
	file *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	base := logrus.New()

	level := logrus.InfoLevel
	if cfg != nil {
		if parsed, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
			level = parsed
		}
	}
	base.SetLevel(level)

	format := ""
	if cfg != nil {
		format = cfg.Log.Format
	}
	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	l := &Logger{base: base}

	output := ""
	if cfg != nil {
		output = cfg.Log.Output
	}
	switch output {
	case "file":
		if cfg.Log.Filename != "" {
			if f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				l.file = f
				base.SetOutput(io.MultiWriter(os.Stdout, f))
			} else {
				base.SetOutput(os.Stdout)
				base.Warnf("failed to open log file, fallback to stdout filename=%s error=%v", cfg.Log.Filename, err)
			}
		}
	default:
		base.SetOutput(os.Stdout)
	}

	return l
}

// SetGlobalLogger 设置全局日志器
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func std() *logrus.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger.base
	}
	return logrus.StandardLogger()
}

// Close 关闭日志文件句柄
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

// Debug 结构化调试日志
func Debug(msg string, fields ...map[string]interface{}) {
	entryWith(fields).Debug(msg)
}

// Info 结构化信息日志
func Info(msg string, fields ...map[string]interface{}) {
	entryWith(fields).Info(msg)
}

// Warn 结构化警告日志
func Warn(msg string, fields ...map[string]interface{}) {
	entryWith(fields).Warn(msg)
}

// Error 结构化错误日志
func Error(msg string, fields ...map[string]interface{}) {
	entryWith(fields).Error(msg)
}

func Debugf(format string, args ...interface{}) { std().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std().Errorf(format, args...) }

// Fatal 打印日志后退出进程
func Fatal(msg string) {
	std().Fatal(msg)
}

func entryWith(fields []map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(std())
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	return entry
}
