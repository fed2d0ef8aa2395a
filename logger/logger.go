// Package logger builds Grizzly's logrus setup: a custom formatter that
// prefixes each line with a timestamp, level, and call site, plus
// separate info/error destinations. New returns loggers a caller owns
// rather than process-wide package vars, so engine.Database and
// cmd/grizzly each hold their own.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects the log level and optional file destinations; an empty
// path falls back to stdout/stderr.
type Config struct {
	ErrorLogPath string
	InfoLogPath  string
	LogLevel     string
}

// Loggers is the trio New builds: Main for general application logging,
// Info/Error split by destination file.
type Loggers struct {
	Main  *logrus.Logger
	Info  *logrus.Logger
	Error *logrus.Logger
}

// CustomFormatter renders `[time] [LEVEL] (file:func:line) message`.
type CustomFormatter struct {
	TimestampFormat string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, getCaller(), entry.Message)), nil
}

// getCaller walks the call stack past logrus's own frames to find the
// first frame outside logrus/this package.
func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") ||
			strings.Contains(file, "/logger/logger.go") ||
			strings.Contains(file, "sirupsen") ||
			strings.Contains(file, "/entry.go") {
			continue
		}
		funcName := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}
	return "unknown:unknown:0"
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds Main/Info/Error loggers per cfg, all sharing the same
// CustomFormatter and level. Info/Error additionally tee to their
// configured file path (falling back to stdout/stderr, with a warning on
// the logger itself, if the file can't be opened).
func New(cfg Config) (*Loggers, error) {
	formatter := &CustomFormatter{TimestampFormat: "15:04:05 MST 2006/01/02"}
	level := parseLogLevel(cfg.LogLevel)

	info := logrus.New()
	info.SetFormatter(formatter)
	info.SetLevel(level)
	info.SetOutput(destinationOrFallback(cfg.InfoLogPath, os.Stdout, info))

	errLog := logrus.New()
	errLog.SetFormatter(formatter)
	errLog.SetLevel(level)
	errLog.SetOutput(destinationOrFallback(cfg.ErrorLogPath, os.Stderr, errLog))

	main := logrus.New()
	main.SetFormatter(formatter)
	main.SetLevel(level)
	main.SetOutput(info.Out)

	return &Loggers{Main: main, Info: info, Error: errLog}, nil
}

func destinationOrFallback(path string, fallback *os.File, warnOn *logrus.Logger) io.Writer {
	if path == "" {
		return fallback
	}
	f, err := openLogFile(path)
	if err != nil {
		warnOn.Warnf("failed to open log file %s, falling back to %s: %v", path, fallback.Name(), err)
		return fallback
	}
	return io.MultiWriter(fallback, f)
}

func openLogFile(logPath string) (*os.File, error) {
	if dir := filepath.Dir(logPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
