package logger

import (
	"io"
	"os"
	"path/filepath"

	"photo-compressor-go/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig is the resolved logging setup for one process. File rotation
// fields map onto lumberjack; an empty FilePath logs to stderr only.
type LoggerConfig struct {
	Level      string
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Console    bool // also write to stderr when FilePath is set
}

// NewLogger returns a logrus.Logger writing JSON lines to a rotating file,
// the console, or both.
func NewLogger(cfg LoggerConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
		},
	})

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	if cfg.Console || cfg.FilePath == "" {
		writers = append(writers, os.Stderr)
	}

	if len(writers) > 1 {
		logger.SetOutput(io.MultiWriter(writers...))
	} else {
		logger.SetOutput(writers[0])
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Handy for tests and for
// callers that do not care about per-item logging.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// FromConfig builds a LoggerConfig from the logging section of the app
// config. verbose forces debug, quiet forces error and turns the console off;
// quiet wins when both are set.
func FromConfig(c config.LoggingConfig, verbose, quiet bool) LoggerConfig {
	lc := LoggerConfig{
		Level:      c.Level,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
		Console:    verbose,
	}
	if verbose {
		lc.Level = "debug"
	}
	if quiet {
		lc.Level = "error"
		lc.Console = false
	}
	return lc
}

// WithFile returns a logger entry for one source image.
func WithFile(logger *logrus.Logger, filePath string) *logrus.Entry {
	return logger.WithField("file", filePath)
}

// WithFileOperation tags an entry with the source image and the batch step
// (materialize or compress) it concerns.
func WithFileOperation(logger *logrus.Logger, filePath, operation string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"file":      filePath,
		"operation": operation,
	})
}

// WithRoot returns a logger entry for a directory-level step such as a scan
// or a failure report export.
func WithRoot(logger *logrus.Logger, root string) *logrus.Entry {
	return logger.WithField("root", root)
}
