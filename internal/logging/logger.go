package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level 日志级别
type Level int

// 日志级别常量
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel 解析日志级别字符串
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger 带级别过滤和文件轮转的日志器
type Logger struct {
	mu     sync.Mutex
	level  Level
	out    *log.Logger
	closer io.Closer // 文件输出时持有 lumberjack，用于关闭
}

// New 创建日志器
// logFile 为空时只输出到 stdout，否则同时写入轮转日志文件
func New(level Level, logFile string) *Logger {
	var writer io.Writer = os.Stdout
	var closer io.Closer

	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // 天
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	return &Logger{
		level:  level,
		out:    log.New(writer, "", log.LstdFlags),
		closer: closer,
	}
}

// Debugf 输出 DEBUG 级别日志
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

// Infof 输出 INFO 级别日志
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}

// Warnf 输出 WARN 级别日志
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}

// Errorf 输出 ERROR 级别日志
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, "ERROR", format, args...)
}

// SetLevel 调整日志级别
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close 关闭底层日志文件
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) logf(level Level, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	l.out.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}
