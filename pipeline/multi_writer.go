package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/anime-corsair/models"
)

// MultiWriter fans every batch out to several writers in order.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter wraps writers. Nil writers are ignored.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	kept := make([]OutputWriter, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			kept = append(kept, w)
		}
	}
	return &MultiWriter{writers: kept}
}

// NewDualWriter writes CSV and JSONL side by side.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, err
	}
	return NewMultiWriter(csvWriter, jsonWriter), nil
}

// Write stops at the first failing writer.
func (mw *MultiWriter) Write(items []*models.Anime) error {
	for i, w := range mw.writers {
		if err := w.Write(items); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewWriter builds the writer for format: csv, json or dual. Dual derives the
// JSONL path from filename.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "dual":
		return NewDualWriter(filename, strings.TrimSuffix(filename, ".csv")+".jsonl")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
