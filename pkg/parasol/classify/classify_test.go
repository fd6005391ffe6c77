package classify

import (
	"errors"
	"reflect"
	"testing"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

func testTable() []Category {
	return []Category{
		{ID: 1, Name: "Edukacja", Keywords: []string{"edukac", "oświat", "szkoł"}},
		{ID: 2, Name: "Ekologia", Keywords: []string{"ekolog", "środowisk"}},
		{ID: 3, Name: "Sport", Keywords: []string{"sport"}},
		{ID: 99, Name: "Inne"},
	}
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(testTable(), 99)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassifyMatches(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify([]string{"Prowadzimy działalność w zakresie edukacja oraz ekologia"})
	want := []store.Category{{ID: 1, Name: "Edukacja"}, {ID: 2, Name: "Ekologia"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify = %v, want %v", got, want)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify([]string{"OCHRONA ŚRODOWISKA NATURALNEGO"})
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected Ekologia for upper-case Polish text, got %v", got)
	}
}

func TestClassifyAcrossClauses(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify([]string{"kluby sportowe", "wsparcie szkoły"})
	if !reflect.DeepEqual(IDs(got), []int{1, 3}) {
		t.Errorf("expected categories in table order [1 3], got %v", IDs(got))
	}
}

func TestClassifyFallback(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name    string
		clauses []string
	}{
		{"no match", []string{"działalność charytatywna"}},
		{"empty clause list", nil},
		{"blank clauses", []string{"", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.clauses)
			want := []store.Category{{ID: 99, Name: "Inne"}}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Classify(%q) = %v, want %v", tt.clauses, got, want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := newTestClassifier(t)
	clauses := []string{"sport i rekreacja", "edukacja ekologiczna"}

	first := c.Classify(clauses)
	for i := 0; i < 100; i++ {
		if got := c.Classify(clauses); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d: %v != %v", i, got, first)
		}
	}

	// A fresh classifier built from the same table gives the same answer.
	other := newTestClassifier(t)
	if got := other.Classify(clauses); !reflect.DeepEqual(got, first) {
		t.Errorf("different instance disagrees: %v != %v", got, first)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		table    []Category
		fallback int
	}{
		{"missing fallback", testTable(), 7},
		{"duplicate id", append(testTable(), Category{ID: 1, Name: "Dup"}), 99},
		{"empty name", append(testTable(), Category{ID: 5}), 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.table, tt.fallback)
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestCategoriesAndFallback(t *testing.T) {
	c := newTestClassifier(t)

	cats := c.Categories()
	if len(cats) != 4 || cats[0].Name != "Edukacja" || cats[3].ID != 99 {
		t.Errorf("unexpected categories %v", cats)
	}
	if c.Fallback() != (store.Category{ID: 99, Name: "Inne"}) {
		t.Errorf("unexpected fallback %v", c.Fallback())
	}
}
