// Package logging builds the logrus logger used by the navcomm tools, with
// optional size based rotation of a log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level string `toml:"level"`
	// File enables logging to a rotated file in addition to stderr.
	File       string `toml:"file,omitempty"`
	MaxSize    int    `toml:"max_size,omitempty"`    // megabytes
	MaxBackups int    `toml:"max_backups,omitempty"` // files
	MaxAge     int    `toml:"max_age,omitempty"`     // days
	Compress   bool   `toml:"compress,omitempty"`
	JSON       bool   `toml:"json,omitempty"`
}

type Logger struct {
	*logrus.Logger
	fileHook *lumberjack.Logger
}

// New creates a logger writing to stderr and, if cfg.File is set, to a
// rotated log file. An unknown level falls back to info.
func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, console io.Writer) (*Logger, error) {
	base := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse log level '%s', defaulting to 'info'. Error: %v\n", cfg.Level, err)
		} else {
			level = l
		}
	}
	base.SetLevel(level)

	if cfg.JSON {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
				return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
			},
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}

	l := &Logger{Logger: base}
	if cfg.File == "" {
		base.SetOutput(console)
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	l.fileHook = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	base.SetOutput(io.MultiWriter(l.fileHook, console))
	return l, nil
}

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(levelStr string) error {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", levelStr, err)
	}
	l.Logger.SetLevel(level)
	return nil
}

// SetConsole replaces the console writer. The log file, if any, keeps
// receiving every entry.
func (l *Logger) SetConsole(w io.Writer) {
	if l.fileHook == nil {
		l.Logger.SetOutput(w)
		return
	}
	l.Logger.SetOutput(io.MultiWriter(l.fileHook, w))
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.fileHook != nil {
		return l.fileHook.Close()
	}
	return nil
}
