package log

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hibor-causal/make-dataset/conf"
	"github.com/hibor-causal/make-dataset/dataset/constants"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

var ETL logrus.FieldLogger

func init() {
	SetupLoggers()
}

// SetupLoggers (re)builds the package loggers from the current configuration.
func SetupLoggers() {
	ETL = Logger(logrus.New(), conf.GetEnv("ETL_LOG"),
		constants.Name, conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetOutput(colorable.NewColorableStderr())
	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	if level, err := logrus.ParseLevel(conf.GetEnv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown LOG_LEVEL %q. Will use %s.", conf.GetEnv("LOG_LEVEL"), logger.GetLevel())
	}

	if conf.GetEnv("LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&PipelineFormatter{})
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
