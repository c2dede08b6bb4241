// Package logging provides the package-level structured logger used across
// the core components, in place of bare fmt.Printf/log.Printf call sites.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. Components log at the call site with
// structured fields rather than threading a logger through every
// constructor.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// WithFields is a shorthand for Log.WithFields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
