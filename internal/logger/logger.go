// Package logger builds the JSON logrus logger used by the CLI and the web
// server, plus the entry helpers that tag log lines with a file, operation
// or job.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"pdf-editor-go/internal/config"
)

// Options are the command-line overrides applied on top of the logging
// section of the configuration.
type Options struct {
	// Verbose forces debug level.
	Verbose bool
	// Quiet forces error level and keeps log lines off stdout. Quiet wins
	// over Verbose.
	Quiet bool
}

// Level returns the level name New uses for c under opts.
func Level(c config.LoggingConfig, opts Options) string {
	switch {
	case opts.Quiet:
		return "error"
	case opts.Verbose:
		return "debug"
	case c.Level == "":
		return "info"
	}
	return c.Level
}

// New returns a logger writing JSON lines. With c.FilePath set, lines go to
// that file, rotated by lumberjack, and are mirrored to stdout unless
// opts.Quiet is set. Without a file they go to stdout only.
func New(c config.LoggingConfig, opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(Level(c, opts))
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
		},
	})

	if c.FilePath == "" {
		log.SetOutput(os.Stdout)
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.FilePath), 0755); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
	if opts.Quiet {
		log.SetOutput(file)
	} else {
		log.SetOutput(io.MultiWriter(file, os.Stdout))
	}
	return log, nil
}

// WithFile tags an entry with the PDF being processed.
func WithFile(log *logrus.Logger, path string) *logrus.Entry {
	return log.WithField("file", path)
}

// WithOperation tags an entry with an editing or compression operation.
func WithOperation(log *logrus.Logger, operation string) *logrus.Entry {
	return log.WithField("operation", operation)
}

// WithFileOperation combines WithFile and WithOperation.
func WithFileOperation(log *logrus.Logger, path, operation string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"file":      path,
		"operation": operation,
	})
}

// WithJob tags an entry with a web job identifier.
func WithJob(log *logrus.Logger, jobID string) *logrus.Entry {
	return log.WithField("job", jobID)
}
