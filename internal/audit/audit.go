// Package audit writes the append-only trail of account and dataset events.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Actions recorded in the trail.
const (
	ActionRegister = "register"
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionUpload   = "dataset_upload"
	ActionExport   = "dataset_export"
	ActionForecast = "forecast_batch"
)

// Log is a JSON-lines audit trail.
type Log struct {
	log    *logrus.Logger
	closer io.Closer
}

// Open appends to the audit file at path, creating it and its directory.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes the trail to w.
func New(w io.Writer) *Log {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
	return &Log{log: log}
}

// Record writes one event. A nil Log discards it.
func (l *Log) Record(action, username string, success bool, fields logrus.Fields) {
	if l == nil {
		return
	}
	entry := l.log.WithFields(logrus.Fields{
		"action":   action,
		"username": username,
		"success":  success,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	if success {
		entry.Info(action)
	} else {
		entry.Warn(action)
	}
}

func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
