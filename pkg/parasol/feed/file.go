package feed

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol"
)

// FileSource serves a JSONL dump as a feed. Acknowledged items are removed
// from the pending set, mirroring the HTTP feed.
type FileSource struct {
	mu      sync.Mutex
	pending []Item
}

// OpenFile loads a JSONL dump.
func OpenFile(path string, logger *zap.Logger) (*FileSource, error) {
	items, err := LoadFromJSONL(path, logger)
	if err != nil {
		return nil, err
	}
	return NewFileSource(items), nil
}

// NewFileSource serves the given items.
func NewFileSource(items []Item) *FileSource {
	return &FileSource{pending: append([]Item(nil), items...)}
}

// FetchPage returns up to limit pending items, in file order.
func (s *FileSource) FetchPage(ctx context.Context, region string, limit int) ([]parasol.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var page []Item
	for _, it := range s.pending {
		if limit > 0 && len(page) >= limit {
			break
		}
		if region != "" && !strings.EqualFold(strings.TrimSpace(it.Address.Region), region) {
			continue
		}
		page = append(page, it)
	}
	return Records(page), nil
}

// Acknowledge removes the given ids and returns how many were removed.
func (s *FileSource) Acknowledge(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pending[:0]
	deleted := 0
	for _, it := range s.pending {
		if _, ok := drop[strings.TrimSpace(it.KRS)]; ok {
			deleted++
			continue
		}
		kept = append(kept, it)
	}
	s.pending = kept
	return deleted, nil
}

// Pending returns the number of items not yet acknowledged.
func (s *FileSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
