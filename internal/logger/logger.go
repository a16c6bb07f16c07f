// Package logger builds the structured logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level  string
	Format string // "text" or "json"
	Output string // "stdout", "stderr" or a file path

	// MaxAge in days enables rotation of file output
	MaxAge int

	// Trace attaches log records to the active span as span events
	Trace bool
}

// New returns a configured logger. Unknown levels and formats are errors.
func New(opts Options) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	formatter, err := formatter(opts.Format)
	if err != nil {
		return nil, err
	}
	l.SetFormatter(formatter)

	out, err := output(opts.Output, opts.MaxAge)
	if err != nil {
		return nil, err
	}
	l.SetOutput(out)

	if opts.Trace {
		l.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
			logrus.InfoLevel,
		)))
	}

	return l, nil
}

// Component returns an entry tagged with the component name.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

func parseLevel(level string) (logrus.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level '%s'", level)
	}
	return lvl, nil
}

func formatter(format string) (logrus.Formatter, error) {
	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		}, nil
	case "text", "":
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		}, nil
	default:
		return nil, fmt.Errorf("invalid log format '%s'", format)
	}
}

func output(target string, maxAge int) (io.Writer, error) {
	switch target {
	case "stderr", "":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}

	if maxAge > 0 {
		return &lumberjack.Logger{
			Filename: target,
			MaxAge:   maxAge,
			MaxSize:  100,
			Compress: true,
		}, nil
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", target, err)
	}
	return file, nil
}
