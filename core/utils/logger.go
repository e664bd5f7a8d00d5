package utils

import (
	"io"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// Logger is the process-wide logger handed to stores, services and handlers.
type Logger struct {
	entry *log.Entry
}

func NewLoggerWith(w io.Writer, level, format string) *Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	var h log.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		h = jsonhandler.New(w)
	default:
		h = text.New(w)
	}
	return &Logger{entry: log.NewEntry(&log.Logger{Handler: h, Level: lvl})}
}

// NewDiscardLogger drops every record; used by tests.
func NewDiscardLogger() *Logger {
	return &Logger{entry: log.NewEntry(&log.Logger{Handler: discard.New(), Level: log.FatalLevel})}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Infof(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Debugf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Errorf(format, args...)
}

func (l *Logger) WithField(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithError(err error) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{entry: l.entry.WithError(err)}
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
