// Package krs extracts organization records from raw registry documents.
// Documents are irregular nested JSON; every value is reached through a
// fixed chain of keys and any missing link simply yields nothing.
package krs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/norbert12x/parasol/pkg/parasol"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// UnknownName is used when a document carries no organization name.
const UnknownName = "Nieznana nazwa"

// rootPaths are tried in order; documents come with and without the
// "odpis" envelope.
var rootPaths = [][]string{
	{"odpis", "dane"},
	{"dane"},
}

// ExtractFile reads a document from disk. The identifier is the file name
// without its extension.
func ExtractFile(path string) (parasol.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return parasol.Record{}, err
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Extract(id, raw)
}

// Extract parses one raw document into a record.
func Extract(id string, raw []byte) (parasol.Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return parasol.Record{}, fmt.Errorf("document %s: %w", id, internalerr.ErrEmptyDocument)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return parasol.Record{}, fmt.Errorf("document %s: %v: %w", id, err, internalerr.ErrMalformedDocument)
	}

	root, ok := findRoot(doc)
	if !ok {
		return parasol.Record{}, fmt.Errorf("document %s: no dane section: %w", id, internalerr.ErrMalformedDocument)
	}

	rec := parasol.Record{
		KRS:      id,
		Name:     extractName(root),
		Purposes: extractPurposes(root),
	}
	if addr, ok := extractAddress(root); ok {
		addr.KRS = id
		rec.Addresses = []store.Address{addr}
	}

	if len(rec.Purposes) == 0 {
		return rec, fmt.Errorf("document %s: %w", id, internalerr.ErrNoPurpose)
	}
	return rec, nil
}

func findRoot(doc map[string]any) (map[string]any, bool) {
	for _, path := range rootPaths {
		if m, ok := lookup(doc, path...).(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

func extractName(root map[string]any) string {
	name := cleanText(stringValue(lookup(root, "dzial1", "danePodmiotu", "nazwa")))
	if name == "" {
		return UnknownName
	}
	return name
}

// extractAddress needs both the seat and the address sub-trees; a partial
// address is never produced.
func extractAddress(root map[string]any) (store.Address, bool) {
	seat, ok := lookup(root, "dzial1", "siedzibaIAdres", "siedziba").(map[string]any)
	if !ok {
		return store.Address{}, false
	}
	adres, ok := lookup(root, "dzial1", "siedzibaIAdres", "adres").(map[string]any)
	if !ok {
		return store.Address{}, false
	}

	addr := store.Address{
		Street:     field(adres, "ulica"),
		Building:   field(adres, "nrDomu"),
		Unit:       field(adres, "nrLokalu"),
		Locality:   field(adres, "miejscowosc"),
		PostalCode: field(adres, "kodPocztowy"),
		PostOffice: field(adres, "poczta"),
		District:   field(seat, "gmina"),
		County:     field(seat, "powiat"),
		Region:     field(seat, "wojewodztwo"),
		Country:    field(seat, "kraj"),
	}
	if c := field(adres, "kraj"); c != "" {
		addr.Country = c
	}
	return addr, !addr.IsZero()
}

func extractPurposes(root map[string]any) []string {
	var out []string
	add := func(v any) {
		for _, s := range textValues(v) {
			if s = cleanText(s); s != "" {
				out = append(out, s)
			}
		}
	}

	add(lookup(root, "dzial3", "celDzialaniaOrganizacji", "celDzialania"))

	for _, path := range [][]string{
		{"dzial3", "przedmiotDzialalnosciOPP", "nieodplatnyPkd"},
		{"dzial3", "przedmiotDzialalnosciOPP", "odplatnyPkd"},
		{"dzial3", "przedmiotDzialalnosci", "przedmiotPrzewazajacejDzialalnosci"},
		{"dzial3", "przedmiotDzialalnosci", "przedmiotPozostalejDzialalnosci"},
	} {
		for _, entry := range list(lookup(root, path...)) {
			if m, ok := entry.(map[string]any); ok {
				add(m["opis"])
			}
		}
	}
	return out
}

// lookup walks nested objects; nil when any link is missing.
func lookup(v any, path ...string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// list accepts a JSON array or a single object standing in for one.
func list(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	}
	return nil
}

// textValues accepts a string or an array of strings.
func textValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func field(m map[string]any, key string) string {
	return cleanText(stringValue(m[key]))
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// cleanText strips markup and collapses whitespace.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = stripHTML(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		} else if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "p" || n.Data == "li") {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)
	return buf.String()
}
