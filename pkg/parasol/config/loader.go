package config

import (
	"fmt"

	"github.com/norbert12x/parasol/pkg/parasol/classify"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	CategoriesPath string
}

// Components holds all loaded configuration components
type Components struct {
	Categories *CategoryTable
	Classifier *classify.Classifier
}

// Load reads configuration files and returns initialized components.
// Without a categories path the embedded table is used.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.CategoriesPath != "" {
		table, err := LoadCategories(l.CategoriesPath)
		if err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		comp.Categories = table
	} else {
		comp.Categories = DefaultCategories()
	}

	classifier, err := comp.Categories.Classifier()
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	comp.Classifier = classifier

	return comp, nil
}
