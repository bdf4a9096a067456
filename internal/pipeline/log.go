package pipeline

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logMu  sync.RWMutex
	logger = newLogEntry("dev")
)

func newLogEntry(env string) *logrus.Entry {
	l := logrus.New()
	l.Out = os.Stderr

	if env == "prod" {
		l.Formatter = &logrus.JSONFormatter{}
		l.Level = logrus.InfoLevel
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
		l.Level = logrus.DebugLevel
	}

	return l.WithField("env", env)
}

// SetupLogging replaces the package logger. "prod" logs JSON at info level,
// anything else logs text at debug level.
func SetupLogging(env string) *logrus.Entry {
	entry := newLogEntry(env)
	logMu.Lock()
	logger = entry
	logMu.Unlock()
	return entry
}

// Logger returns the package logger.
func Logger() *logrus.Entry {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}
