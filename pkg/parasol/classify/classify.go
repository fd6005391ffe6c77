package classify

import (
	"fmt"
	"strings"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Category is one row of the keyword table: a category and the ordered
// keyword substrings that assign it.
type Category struct {
	ID       int
	Name     string
	Keywords []string
}

// Classifier maps purpose clauses to categories by case-insensitive
// substring matching. Table order is preserved so output is deterministic.
type Classifier struct {
	table    []Category // keywords lowercase
	fallback store.Category
}

// New creates a classifier from a keyword table and the id of the category
// assigned when nothing matches. The fallback must be part of the table.
func New(table []Category, fallbackID int) (*Classifier, error) {
	c := &Classifier{table: make([]Category, 0, len(table))}
	seen := make(map[int]struct{}, len(table))
	found := false

	for _, cat := range table {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("category %d has no name: %w", cat.ID, internalerr.ErrInvalidConfig)
		}
		if _, dup := seen[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %d: %w", cat.ID, internalerr.ErrInvalidConfig)
		}
		seen[cat.ID] = struct{}{}

		normalized := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			normalized = append(normalized, kw)
		}
		c.table = append(c.table, Category{ID: cat.ID, Name: cat.Name, Keywords: normalized})

		if cat.ID == fallbackID {
			c.fallback = store.Category{ID: cat.ID, Name: cat.Name}
			found = true
		}
	}

	if !found {
		return nil, fmt.Errorf("fallback category %d not in table: %w", fallbackID, internalerr.ErrInvalidConfig)
	}
	return c, nil
}

// Classify returns the categories whose keywords occur in any clause, in
// table order. It never returns an empty slice: without a match the result
// is exactly the fallback category.
func (c *Classifier) Classify(clauses []string) []store.Category {
	lowered := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		if cl = strings.ToLower(cl); cl != "" {
			lowered = append(lowered, cl)
		}
	}

	var cats []store.Category
	for _, cat := range c.table {
		if matchesAny(cat.Keywords, lowered) {
			cats = append(cats, store.Category{ID: cat.ID, Name: cat.Name})
		}
	}

	if len(cats) == 0 {
		return []store.Category{c.fallback}
	}
	return cats
}

// matchesAny stops at the first keyword found in any clause.
func matchesAny(keywords, clauses []string) bool {
	for _, kw := range keywords {
		for _, cl := range clauses {
			if strings.Contains(cl, kw) {
				return true
			}
		}
	}
	return false
}

// Categories returns the reference set in table order.
func (c *Classifier) Categories() []store.Category {
	out := make([]store.Category, len(c.table))
	for i, cat := range c.table {
		out[i] = store.Category{ID: cat.ID, Name: cat.Name}
	}
	return out
}

// Fallback returns the category assigned when no keyword matches.
func (c *Classifier) Fallback() store.Category {
	return c.fallback
}

// IDs extracts category ids.
func IDs(cats []store.Category) []int {
	ids := make([]int, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return ids
}
