// Package gflog provides a minimal leveled wrapper over the standard
// library's *log.Logger, giving the CLI and build service one place to
// log through instead of each formatting level prefixes by hand.
package gflog

import (
	"io"
	"log"
	"os"
)

// Logger is a leveled wrapper over a single *log.Logger.
type Logger struct {
	l *log.Logger
}

// std is the package-level default logger, writing to stderr with no
// extra flags beyond a timestamp.
var std = New(os.Stderr)

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{l: log.New(w, "", log.LstdFlags)}
}

// SetOutput redirects the package-level default logger's output.
func SetOutput(w io.Writer) {
	std.l.SetOutput(w)
}

func (lg *Logger) Info(format string, args ...interface{})  { lg.l.Printf("INFO  "+format, args...) }
func (lg *Logger) Warn(format string, args ...interface{})  { lg.l.Printf("WARN  "+format, args...) }
func (lg *Logger) Error(format string, args ...interface{}) { lg.l.Printf("ERROR "+format, args...) }

// Info logs at info level to the package default logger.
func Info(format string, args ...interface{}) { std.Info(format, args...) }

// Warn logs at warn level to the package default logger.
func Warn(format string, args ...interface{}) { std.Warn(format, args...) }

// Error logs at error level to the package default logger.
func Error(format string, args ...interface{}) { std.Error(format, args...) }
