package shardroute

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel controls how much the package logs.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Logger defines the interface for logging in the shardroute package.
// This allows users to plug in their own logging implementations.
type Logger interface {
	// Error logs error messages that should always be displayed
	Error(format string, args ...interface{})

	// Info logs informational messages about normal operations
	Info(format string, args ...interface{})

	// Debug logs detailed information for debugging purposes
	Debug(format string, args ...interface{})

	// Trace logs highly detailed tracing information
	Trace(format string, args ...interface{})

	// SetLevel changes the current logging level
	SetLevel(level LogLevel)

	// GetLevel returns the current logging level
	GetLevel() LogLevel
}

// StandardLogger implements Logger on top of the standard log package.
type StandardLogger struct {
	mutex sync.RWMutex
	level LogLevel
	log   *log.Logger
}

// NewStandardLogger creates a new StandardLogger with the specified level and output
func NewStandardLogger(level LogLevel, out io.Writer, showTime bool) *StandardLogger {
	flags := 0
	if showTime {
		flags = log.LstdFlags
	}

	return &StandardLogger{
		level: level,
		log:   log.New(out, "", flags),
	}
}

func (l *StandardLogger) printf(level LogLevel, tag, format string, args ...interface{}) {
	l.mutex.RLock()
	enabled := l.level >= level
	l.mutex.RUnlock()

	if enabled {
		l.log.Printf(tag+" "+format, args...)
	}
}

// Error logs error messages; they are never filtered.
func (l *StandardLogger) Error(format string, args ...interface{}) {
	l.log.Printf("[ERROR] "+format, args...)
}

func (l *StandardLogger) Info(format string, args ...interface{}) {
	l.printf(LogLevelInfo, "[INFO]", format, args...)
}

func (l *StandardLogger) Debug(format string, args ...interface{}) {
	l.printf(LogLevelDebug, "[DEBUG]", format, args...)
}

func (l *StandardLogger) Trace(format string, args ...interface{}) {
	l.printf(LogLevelTrace, "[TRACE]", format, args...)
}

func (l *StandardLogger) SetLevel(level LogLevel) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.level = level
}

func (l *StandardLogger) GetLevel() LogLevel {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.level
}

// LogrumLogger implements the Logger interface using logrus.
// Every entry carries the application name as the "app" field.
type LogrumLogger struct {
	mutex   sync.RWMutex
	level   LogLevel
	logrus  *logrus.Logger
	appName string
}

// NewLogrumLogger creates a LogrumLogger writing text entries to out.
func NewLogrumLogger(level LogLevel, out io.Writer, appName string) *LogrumLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(toLogrusLevel(level))

	return &LogrumLogger{
		level:   level,
		logrus:  logger,
		appName: appName,
	}
}

func (l *LogrumLogger) entry() *logrus.Entry {
	fields := logrus.Fields{}
	if l.appName != "" {
		fields["app"] = l.appName
	}
	return l.logrus.WithFields(fields)
}

func (l *LogrumLogger) enabled(level LogLevel) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.level >= level
}

// Error logs are always output regardless of the log level.
func (l *LogrumLogger) Error(format string, args ...interface{}) {
	l.entry().Error(fmt.Sprintf(format, args...))
}

func (l *LogrumLogger) Info(format string, args ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.entry().Info(fmt.Sprintf(format, args...))
	}
}

func (l *LogrumLogger) Debug(format string, args ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.entry().Debug(fmt.Sprintf(format, args...))
	}
}

func (l *LogrumLogger) Trace(format string, args ...interface{}) {
	if l.enabled(LogLevelTrace) {
		l.entry().Trace(fmt.Sprintf(format, args...))
	}
}

// SetLevel updates both the internal level and the logrus logger's level.
func (l *LogrumLogger) SetLevel(level LogLevel) {
	l.mutex.Lock()
	l.level = level
	l.mutex.Unlock()

	l.logrus.SetLevel(toLogrusLevel(level))
}

func (l *LogrumLogger) GetLevel() LogLevel {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.level
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelError:
		return logrus.ErrorLevel
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelTrace:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// global logger instance
var (
	defaultLogger Logger = NewStandardLogger(LogLevelInfo, os.Stdout, true)
	loggerMutex   sync.RWMutex
)

// GetLogger returns the current global logger
func GetLogger() Logger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()

	return defaultLogger
}

// SetLogger sets a custom logger as the global logger
func SetLogger(logger Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	defaultLogger = logger
}

func errorLog(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

func infoLog(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func debugLog(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func traceLog(format string, args ...interface{}) {
	GetLogger().Trace(format, args...)
}

// openLogOutput resolves "stdout", "stderr" or a file path to a writer.
func openLogOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", output, err)
		return os.Stderr
	}
	return file
}

// configureLogger installs the global logger described by config.
func configureLogger(config LogConfig) {
	output := openLogOutput(config.Output)
	if !config.UseLogrum {
		SetLogger(NewStandardLogger(config.Level, output, config.ShowTime))
		return
	}

	logger := NewLogrumLogger(config.Level, output, config.LogrumOptions.AppName)
	formatter := &logrus.TextFormatter{
		DisableTimestamp: !config.ShowTime,
		FullTimestamp:    config.ShowTime,
	}
	if config.LogrumOptions.TimestampFormat != "" {
		formatter.TimestampFormat = config.LogrumOptions.TimestampFormat
	}
	logger.logrus.SetFormatter(formatter)
	if config.LogrumOptions.IncludeCaller {
		logger.logrus.SetReportCaller(true)
	}
	SetLogger(logger)
}
