// Package common provides shared configuration, wire types and logging
// utilities for the qkv HTTP API.
package common

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Logger Interface
// --------------------------------------------------------------------------

// LogLevel controls which messages a logger emits.
type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ILogger is the logging interface used throughout qkv. Loggers are named
// per subsystem (e.g. "store", "quorum", "rpc") and filter by level.
type ILogger interface {
	SetLevel(level LogLevel)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Panicf(format string, args ...interface{})
}

// --------------------------------------------------------------------------
// Custom Logger
// --------------------------------------------------------------------------

// qkvLogger implements the ILogger interface with custom formatting
type qkvLogger struct {
	name   string
	level  LogLevel
	logger *log.Logger
}

func (l *qkvLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *qkvLogger) Debugf(format string, args ...interface{}) {
	if l.level >= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *qkvLogger) Infof(format string, args ...interface{}) {
	if l.level >= INFO {
		l.log("INFO", format, args...)
	}
}

func (l *qkvLogger) Warningf(format string, args ...interface{}) {
	if l.level >= WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *qkvLogger) Errorf(format string, args ...interface{}) {
	if l.level >= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *qkvLogger) Panicf(format string, args ...interface{}) {
	if l.level >= CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *qkvLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Registry
// --------------------------------------------------------------------------

// loggers holds all named loggers so InitLoggers can adjust their level later
var (
	loggers      = xsync.NewMapOf[string, *qkvLogger]()
	defaultLevel = INFO
)

// GetLogger returns the named logger, creating it on first use.
// The returned logger starts at INFO until InitLoggers is called.
//
// Thread-safety: This function is thread-safe and can be called concurrently.
func GetLogger(pkgName string) ILogger {
	l, _ := loggers.LoadOrCompute(pkgName, func() *qkvLogger {
		return &qkvLogger{
			name:   pkgName,
			level:  defaultLevel,
			logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
		}
	})
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to a LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warning", "warn":
		return WARNING
	case "error":
		return ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers applies the configured log level to all registered loggers.
// Loggers created after this call pick up the level via GetLogger.
func InitLoggers(config ServerConfig) {
	level := parseLogLevel(config.LogLevel)

	defaultLevel = level
	loggers.Range(func(_ string, l *qkvLogger) bool {
		l.SetLevel(level)
		return true
	})
}
