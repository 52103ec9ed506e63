// Package intake turns a batch of uploaded CV files into working records.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-assistant/internal/cvparse"
	"cv-assistant/internal/extract"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/metrics"
	"cv-assistant/internal/shared/storage/object"
	"cv-assistant/internal/shared/telemetry"
)

// File is one uploaded file.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// DataError reports the file that stopped a batch and why.
type DataError struct {
	File   string
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Structurer turns extracted text into record sections.
type Structurer interface {
	Structure(ctx context.Context, text string) (records.Record, error)
}

// LoadFunc places a structured record into the working set.
type LoadFunc func(rec records.Record) error

// Service processes upload batches.
type Service struct {
	store      object.Store
	structurer Structurer
}

// NewService builds a Service. store may be nil, in which case originals are
// not kept and text is extracted from memory.
func NewService(store object.Store, structurer Structurer) *Service {
	return &Service{store: store, structurer: structurer}
}

// ProcessBatch handles files in order. The first failing file aborts the rest
// of the batch with a *DataError; records loaded before it stay loaded. The
// names of loaded records are returned in both cases.
func (s *Service) ProcessBatch(ctx context.Context, ownerID string, files []File, load LoadFunc) ([]string, error) {
	loaded := make([]string, 0, len(files))
	for i, f := range files {
		rec, err := s.processOne(ctx, ownerID, f)
		if err == nil {
			err = load(rec)
			if err != nil {
				err = &DataError{File: f.Name, Reason: "load record", Err: err}
			}
		}
		if err != nil {
			metrics.IncUploadFailed()
			telemetry.Error("intake.file_failed", map[string]any{
				"owner_id": ownerID,
				"file":     f.Name,
				"position": i,
				"skipped":  len(files) - i - 1,
				"error":    err,
			})
			return loaded, err
		}
		metrics.IncUploadProcessed()
		loaded = append(loaded, rec.Name)
		telemetry.Info("intake.file_loaded", map[string]any{
			"owner_id":       ownerID,
			"file":           rec.Name,
			"experience":     len(rec.Experience),
			"education":      len(rec.Education),
			"certifications": len(rec.Certifications),
			"skills":         len(rec.Skills),
		})
	}
	return loaded, nil
}

func (s *Service) processOne(ctx context.Context, ownerID string, f File) (records.Record, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return records.Record{}, &DataError{File: f.Name, Reason: "file name is required"}
	}

	text, err := s.extract(ctx, ownerID, name, f)
	if err != nil {
		return records.Record{}, &DataError{File: name, Reason: reasonOf(err), Err: err}
	}

	rec, err := s.structurer.Structure(ctx, text)
	if err != nil {
		return records.Record{}, &DataError{File: name, Reason: reasonOf(err), Err: err}
	}
	rec.Name = name
	return rec, nil
}

func (s *Service) extract(ctx context.Context, ownerID, name string, f File) (string, error) {
	if s.store == nil {
		return extract.ExtractTextFromBytes(ctx, f.Data, f.MimeType, name)
	}
	obj, err := s.store.Save(ctx, ownerID, name, bytes.NewReader(f.Data))
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	mimeType := f.MimeType
	if strings.TrimSpace(mimeType) == "" {
		mimeType = obj.MimeType
	}
	return extract.ExtractText(ctx, s.store, obj.Key, mimeType, name)
}

func reasonOf(err error) string {
	var extractErr *extract.Error
	if errors.As(err, &extractErr) {
		return extractErr.Reason
	}
	var parseErr *cvparse.Error
	if errors.As(err, &parseErr) {
		return parseErr.Reason
	}
	return err.Error()
}
