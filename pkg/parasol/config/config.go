package config

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/norbert12x/parasol/pkg/parasol/classify"
)

//go:embed categories.yaml
var defaultCategories []byte

// CategoryTable represents the category keyword configuration
type CategoryTable struct {
	Fallback   int             `yaml:"fallback"`
	Categories []CategoryEntry `yaml:"categories"`
}

// CategoryEntry is one category with its ordered keywords
type CategoryEntry struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// LoadCategories loads the category table from a YAML file
func LoadCategories(path string) (*CategoryTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCategories(data)
}

// ParseCategories decodes a category table
func ParseCategories(data []byte) (*CategoryTable, error) {
	var table CategoryTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// DefaultCategories returns the built-in category table
func DefaultCategories() *CategoryTable {
	table, err := ParseCategories(defaultCategories)
	if err != nil {
		panic("config: embedded categories.yaml is invalid: " + err.Error())
	}
	return table
}

// Classifier builds a classifier from the table
func (t *CategoryTable) Classifier() (*classify.Classifier, error) {
	rows := make([]classify.Category, len(t.Categories))
	for i, e := range t.Categories {
		rows[i] = classify.Category{ID: e.ID, Name: e.Name, Keywords: e.Keywords}
	}
	return classify.New(rows, t.Fallback)
}
