// Package logger provides named loggers that share a single output handler.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cenkalti/log"
)

var handler log.Handler

func init() {
	SetOutput(os.Stderr)
}

// SetOutput replaces the global handler with one that writes to w.
// The current level is reset to INFO.
func SetOutput(w io.Writer) {
	h := log.NewWriterHandler(w)
	h.SetFormatter(logFormatter{})
	h.SetLevel(log.INFO)
	handler = h
}

// SetLevel sets the logging level on the global handler.
func SetLevel(l log.Level) {
	handler.SetLevel(l)
}

// SetDebug switches between DEBUG and INFO levels.
func SetDebug(enabled bool) {
	if enabled {
		SetLevel(log.DEBUG)
	} else {
		SetLevel(log.INFO)
	}
}

// Logger is for logging messages from inside of the program in various logging levels.
type Logger log.Logger

// New returns a new Logger with a name.
// Log messages are prefixed with this name by the default Handler.
func New(name string) Logger {
	l := log.NewLogger(name)
	l.SetLevel(log.DEBUG) // filtering happens in the handler
	l.SetHandler(handler)
	return l
}

type logFormatter struct{}

// Format outputs a message like "2014-02-28 18:15:57 INFO     [tracker] httptracker.go:81 announce ok"
func (f logFormatter) Format(rec *log.Record) string {
	return fmt.Sprintf("%s %-8s [%s] %s %s",
		fmt.Sprint(rec.Time)[:19],
		rec.Level,
		rec.LoggerName,
		filepath.Base(rec.Filename)+":"+strconv.Itoa(rec.Line),
		rec.Message)
}
