package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a configured logrus logger.
//
// Parameters:
//
//	logLevel: The log level (debug, info, warn, error).
//	environment: The environment (development, production).
//
// Returns:
//
//	*logrus.Logger: The initialized logger.
func New(logLevel string, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(parseLevel(logLevel))

	if environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// parseLevel maps a level string to a logrus level, defaulting to info.
func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns a logger entry tagged with the given component name.
// Services receive these by injection rather than reading a global logger.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
