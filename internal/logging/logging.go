// Package logging configures logrus for the command line tools.
package logging

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logger.
func Setup(level string, json bool) error {
	return Configure(log.StandardLogger(), level, json)
}

// Configure sets the level and formatter of l. An empty level means info.
func Configure(l *log.Logger, level string, json bool) error {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(lvl)

	if json {
		l.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}
	return nil
}

// Quiet discards everything below error. Used by commands whose stdout is the
// product, like report rendering.
func Quiet(l *log.Logger, w io.Writer) {
	l.SetOutput(w)
	if l.GetLevel() > log.ErrorLevel {
		l.SetLevel(log.ErrorLevel)
	}
}
