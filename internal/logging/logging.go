// Package logging builds the service logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger at the named level.  Production environments log
// JSON; everything else logs colourless text with full timestamps.
// Unknown levels fall back to info.
func New(level, env string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, env)
}

// NewWithOutput is New writing to w.
func NewWithOutput(w io.Writer, level, env string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	switch strings.ToLower(env) {
	case "prod", "production":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return l
}
