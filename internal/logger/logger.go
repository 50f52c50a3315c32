package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production gets JSON lines, everything else
// gets the text formatter.
func New(level string, production bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Discard is used by tests that don't care about log output.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
