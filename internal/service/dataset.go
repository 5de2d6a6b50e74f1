package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"pride/internal/audit"
	"pride/internal/notify"
	"pride/internal/schema"
	"pride/internal/session"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type DatasetService interface {
	// Load reads and normalizes an upload and makes it the session's current
	// dataset. On error the session keeps its previous dataset.
	Load(ctx context.Context, s *session.Session, fileName string, r io.Reader) (*session.Dataset, error)
	// Export serializes the session's current dataset.
	Export(s *session.Session) ([]byte, error)
}

type datasetService struct {
	audit    *audit.Log
	notifier notify.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewDatasetService(auditLog *audit.Log, notifier notify.Notifier, logger *zap.Logger) DatasetService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &datasetService{
		audit:    auditLog,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *datasetService) Load(ctx context.Context, sess *session.Session, fileName string, r io.Reader) (*session.Dataset, error) {
	raw, err := schema.ReadFile(fileName, r)
	if err != nil {
		s.audit.Record(audit.ActionUpload, sess.Username, false, logrus.Fields{"file": fileName, "error": err.Error()})
		return nil, err
	}

	table, err := schema.Normalize(raw, schema.OSS)
	if err != nil {
		s.audit.Record(audit.ActionUpload, sess.Username, false, logrus.Fields{"file": fileName, "error": err.Error()})
		return nil, err
	}

	for _, w := range table.Warnings {
		s.logger.Debug("Unparseable issue date", zap.String("file", fileName), zap.Int("sheet_row", w.SheetRow), zap.String("value", w.Value))
	}

	d := &session.Dataset{FileName: fileName, UploadedAt: s.now(), Table: table}
	sess.SetDataset(d)

	s.audit.Record(audit.ActionUpload, sess.Username, true, logrus.Fields{
		"file":          fileName,
		"rows":          table.Len(),
		"date_warnings": len(table.Warnings),
		"header_drift":  len(table.Drift),
	})
	s.logger.Info("Dataset loaded",
		zap.String("username", sess.Username),
		zap.String("file", fileName),
		zap.Int("rows", table.Len()),
		zap.Int("date_warnings", len(table.Warnings)),
	)

	msg := fmt.Sprintf("%s mengunggah %s (%d baris, %d tanggal tidak terbaca)", sess.Username, fileName, table.Len(), len(table.Warnings))
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("Upload notification failed", zap.Error(err))
	}
	return d, nil
}

func (s *datasetService) Export(sess *session.Session) ([]byte, error) {
	d := sess.Dataset()
	if d == nil {
		return nil, session.ErrNoDataset
	}
	data, err := schema.Export(d.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to export dataset: %w", err)
	}
	s.audit.Record(audit.ActionExport, sess.Username, true, logrus.Fields{"file": d.FileName, "rows": d.Table.Len()})
	return data, nil
}
