// Package feed reads pre-normalized organization items from the registry
// feed, either over HTTP or from a JSONL dump.
package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Item is one organization as published by the feed
type Item struct {
	KRS      string   `json:"numerKrs"`
	Name     string   `json:"nazwa"`
	Address  Address  `json:"adres"`
	Purposes []string `json:"celeDzialania"`
}

// Address is the feed's flat address block
type Address struct {
	Street     string `json:"ulica,omitempty"`
	Building   string `json:"nrDomu,omitempty"`
	Unit       string `json:"nrLokalu,omitempty"`
	Locality   string `json:"miejscowosc,omitempty"`
	PostalCode string `json:"kodPocztowy,omitempty"`
	PostOffice string `json:"poczta,omitempty"`
	District   string `json:"gmina,omitempty"`
	County     string `json:"powiat,omitempty"`
	Region     string `json:"wojewodztwo,omitempty"`
	Country    string `json:"kraj,omitempty"`
}

// Record converts the item for import. The address is kept only when at
// least one field is set.
func (it Item) Record() parasol.Record {
	krs := strings.TrimSpace(it.KRS)
	rec := parasol.Record{
		KRS:  krs,
		Name: strings.TrimSpace(it.Name),
	}
	addr := store.Address{
		KRS:        krs,
		Street:     strings.TrimSpace(it.Address.Street),
		Building:   strings.TrimSpace(it.Address.Building),
		Unit:       strings.TrimSpace(it.Address.Unit),
		Locality:   strings.TrimSpace(it.Address.Locality),
		PostalCode: strings.TrimSpace(it.Address.PostalCode),
		PostOffice: strings.TrimSpace(it.Address.PostOffice),
		District:   strings.TrimSpace(it.Address.District),
		County:     strings.TrimSpace(it.Address.County),
		Region:     strings.TrimSpace(it.Address.Region),
		Country:    strings.TrimSpace(it.Address.Country),
	}
	if !addr.IsZero() {
		rec.Addresses = []store.Address{addr}
	}
	for _, p := range it.Purposes {
		if p = strings.TrimSpace(p); p != "" {
			rec.Purposes = append(rec.Purposes, p)
		}
	}
	return rec
}

// Records converts a page of items.
func Records(items []Item) []parasol.Record {
	out := make([]parasol.Record, len(items))
	for i, it := range items {
		out[i] = it.Record()
	}
	return out
}

// LoadFromJSONL loads items from a JSONL file. Malformed lines are logged
// and skipped.
func LoadFromJSONL(path string, logger *zap.Logger) ([]Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	items, err := ReadJSONL(f, logger.With(zap.String("path", path)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

// ReadJSONL decodes one item per non-blank line.
func ReadJSONL(r io.Reader, logger *zap.Logger) ([]Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var items []Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var item Item
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			logger.Warn("skipping malformed feed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
