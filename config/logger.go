package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func NewLogger(level string, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}
