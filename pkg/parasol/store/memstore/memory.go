package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Store is an in-memory implementation of store.Store for tests and dry runs.
type Store struct {
	mu         sync.RWMutex
	orgs       map[string]store.Organization
	categories map[int]store.Category

	// failUpsert, when set, is returned by UpsertOrganization before any
	// change is applied.
	failUpsert func(o store.Organization) error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		orgs:       make(map[string]store.Organization),
		categories: make(map[int]store.Category),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// FailUpsertWhen installs a hook that can reject upserts, used to simulate
// persistence failures.
func (s *Store) FailUpsertWhen(fn func(o store.Organization) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpsert = fn
}

// SyncCategories replaces the category reference set.
func (s *Store) SyncCategories(ctx context.Context, cats []store.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make(map[int]store.Category, len(cats))
	for _, c := range cats {
		s.categories[c.ID] = c
	}
	return nil
}

// Categories returns the reference set ordered by id.
func (s *Store) Categories(ctx context.Context) ([]store.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertOrganization replaces the organization and all its child rows.
// Validation happens before any mutation so a rejected upsert leaves the
// previous state untouched.
func (s *Store) UpsertOrganization(ctx context.Context, o store.Organization) error {
	if strings.TrimSpace(o.KRS) == "" {
		return fmt.Errorf("upsert organization: empty krs: %w", internalerr.ErrInvalidInput)
	}
	for _, c := range o.Coordinates {
		if !c.Valid() {
			return fmt.Errorf("upsert organization %s: coordinate out of range: %w", o.KRS, internalerr.ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpsert != nil {
		if err := s.failUpsert(o); err != nil {
			return err
		}
	}
	for _, id := range o.Categories {
		if _, ok := s.categories[id]; !ok {
			return fmt.Errorf("upsert organization %s: unknown category %d: %w", o.KRS, id, internalerr.ErrInvalidInput)
		}
	}

	s.orgs[o.KRS] = stamp(o)
	return nil
}

// GetOrganization returns an organization by identifier.
func (s *Store) GetOrganization(ctx context.Context, krs string) (store.Organization, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orgs[krs]; ok {
		return copyOrg(o), true, nil
	}
	return store.Organization{}, false, nil
}

// DeleteOrganization removes an organization and its child rows.
func (s *Store) DeleteOrganization(ctx context.Context, krs string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[krs]; !ok {
		return internalerr.ErrNotFound
	}
	delete(s.orgs, krs)
	return nil
}

// Stats returns row counts.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st store.Stats
	for _, o := range s.orgs {
		st.Organizations++
		st.Addresses += int64(len(o.Addresses))
		st.Coordinates += int64(len(o.Coordinates))
		st.Assignments += int64(len(o.Categories))
	}
	return st, nil
}

// stamp copies o, drops empty addresses, re-stamps child rows with the owner
// and deduplicates category ids the way the SQL backends do.
func stamp(o store.Organization) store.Organization {
	out := copyOrg(o)
	out.Addresses = out.Addresses[:0]
	for _, a := range o.Addresses {
		if a.IsZero() {
			continue
		}
		a.KRS = o.KRS
		out.Addresses = append(out.Addresses, a)
	}
	if len(out.Addresses) == 0 {
		out.Addresses = nil
	}
	for i := range out.Coordinates {
		out.Coordinates[i].KRS = o.KRS
	}
	out.Categories = uniqueInts(out.Categories)
	return out
}

func copyOrg(o store.Organization) store.Organization {
	out := store.Organization{KRS: o.KRS, Name: o.Name}
	if len(o.Addresses) > 0 {
		out.Addresses = append([]store.Address(nil), o.Addresses...)
	}
	if len(o.Coordinates) > 0 {
		out.Coordinates = append([]store.Coordinate(nil), o.Coordinates...)
	}
	if len(o.Categories) > 0 {
		out.Categories = append([]int(nil), o.Categories...)
	}
	return out
}

func uniqueInts(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
