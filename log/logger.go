// Copyright (c) 2020 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/direct-state-transfer/fundme
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the interface used for logging across the node. It is satisfied
// by logrus loggers and entries.
type Logger = logrus.FieldLogger

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	logger.SetFormatter(newFormatter())
}

// InitLogger sets the level and output of the process wide logger.
// Supported log levels are "debug", "info" and "error".
// Logs to stdout if logFile is an empty string.
func InitLogger(levelStr, logFile string) error {
	l, err := NewLogger(levelStr, logFile)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// NewLogger returns a logger set to the given level and log file.
func NewLogger(levelStr, logFile string) (*logrus.Logger, error) {
	l := logrus.New()

	if levelStr != "debug" && levelStr != "info" && levelStr != "error" {
		return nil, errors.New("Unsupported log level, use debug, info or error")
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	l.SetLevel(level)

	if logFile == "" {
		l.SetOutput(os.Stdout)
	} else {
		f, err := os.OpenFile(filepath.Clean(logFile), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		l.SetOutput(f)
	}

	l.SetFormatter(newFormatter())
	return l, nil
}

// NewLoggerWithField returns a logger that logs with the given field.
// The logger uses the configuration set by the last call to InitLogger.
func NewLoggerWithField(key string, value interface{}) Logger {
	return logger.WithField(key, value)
}

func newFormatter() *customTextFormatter {
	return &customTextFormatter{logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05 Z0700",
		DisableLevelTruncation: true,
	}}
}

// customTextFormatter is defined to override default formating options for log entry.
type customTextFormatter struct {
	logrus.TextFormatter
}

// Format modifies the default logging format.
func (f *customTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	originalText, err := f.TextFormatter.Format(entry)
	return append([]byte("▶ "), originalText...), err
}
