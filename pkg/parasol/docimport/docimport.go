// Package docimport imports a directory of raw registry documents, one
// JSON file per organization.
package docimport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/krs"
)

// DocSource abstracts how raw documents are iterated.
type DocSource interface {
	Next(ctx context.Context) (Document, bool, error)
}

// Document is one raw registry document and its identifier.
type Document struct {
	ID   string
	Path string
	Raw  []byte
}

// DirSource iterates *.json files of a directory in name order.
type DirSource struct {
	paths []string
	idx   int
}

// NewDirSource lists the documents in dir.
func NewDirSource(dir string) (*DirSource, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return &DirSource{paths: paths}, nil
}

// Len returns the number of documents found.
func (s *DirSource) Len() int { return len(s.paths) }

// Next returns the next document. A read error is returned for that
// document only; the following call moves on.
func (s *DirSource) Next(ctx context.Context) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	if s.idx >= len(s.paths) {
		return Document{}, false, nil
	}
	path := s.paths[s.idx]
	s.idx++

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{ID: id, Path: path}, true, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{ID: id, Path: path, Raw: raw}, true, nil
}

// RecordImporter persists one record.
type RecordImporter interface {
	Import(ctx context.Context, r parasol.Record) (parasol.Result, error)
}

// Importer extracts and imports every document of a source.
type Importer struct {
	Source   DocSource
	Importer RecordImporter
	Logger   *zap.Logger
}

// Result summarizes a run.
type Result struct {
	Processed int
	Imported  int
	Skipped   int
	Errors    int
}

// Run drains the source. Extraction failures are skipped; persistence
// failures are counted as errors. Only cancellation of ctx aborts the run.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	var res Result
	if im.Source == nil || im.Importer == nil {
		return res, fmt.Errorf("docimport: source and importer required: %w", internalerr.ErrInvalidConfig)
	}
	logger := im.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		doc, ok, err := im.Source.Next(ctx)
		if err != nil && ctx.Err() != nil {
			return res, err
		}
		if !ok {
			break
		}
		res.Processed++
		if err != nil {
			res.Errors++
			logger.Warn("document unreadable", zap.String("krs", doc.ID), zap.Error(err))
			continue
		}

		rec, err := krs.Extract(doc.ID, doc.Raw)
		if err != nil {
			res.Skipped++
			logger.Info("document skipped", zap.String("krs", doc.ID), zap.Error(err))
			continue
		}

		if _, err := im.Importer.Import(ctx, rec); err != nil {
			if internalerr.IsSkippable(err) {
				res.Skipped++
				continue
			}
			res.Errors++
			logger.Warn("document import failed", zap.String("krs", doc.ID), zap.Error(err))
			continue
		}
		res.Imported++
	}

	logger.Info("document import finished",
		zap.Int("processed", res.Processed),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors))
	return res, nil
}
