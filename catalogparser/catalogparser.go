// Package catalogparser loads the product catalog, a flat JSON array of
// medicine records, and turns it into entities.Product values.
package catalogparser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/logging"
	"golang.org/x/text/encoding/charmap"
)

// Compile-time check to ensure FileLoader implements CatalogLoader
var _ interfaces.CatalogLoader = (*FileLoader)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileLoader reads the catalog from a JSON file on disk
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader for the catalog at path
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: filepath.Clean(path)}
}

// Source returns the catalog path
func (l *FileLoader) Source() string {
	return l.path
}

// ModTime returns the modification time of the catalog file
func (l *FileLoader) ModTime() (time.Time, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat catalog %s: %w", l.path, err)
	}
	return info.ModTime(), nil
}

// LoadCatalog reads and converts the whole catalog
func (l *FileLoader) LoadCatalog() ([]entities.Product, *entities.LoadReport, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog %s: %w", l.path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close catalog file", "error", err)
		}
	}()

	return ParseCatalog(file, l.path)
}

// ParseCatalog decodes a catalog from r. Content that is not valid UTF-8 is
// decoded as Windows-1252 first.
func ParseCatalog(r io.Reader, source string) ([]entities.Product, *entities.LoadReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog %s: %w", source, err)
	}

	report := &entities.LoadReport{Source: source}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode catalog %s: %w", source, err)
		}
		raw = decoded
		report.Reencoded = true
		logging.Warn("Catalog is not valid UTF-8, decoded as Windows-1252", "source", source)
	}

	var records []entities.CatalogRecord
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to decode catalog %s: %w", source, err)
	}

	products := make([]entities.Product, 0, len(records))
	report.Records = len(records)

	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			report.SkippedNoName++
			continue
		}

		p := entities.Product{
			ID:             len(products),
			Name:           name,
			Brand:          strings.TrimSpace(rec.Brand),
			RawComposition: strings.TrimSpace(rec.Composition),
			PriceText:      strings.TrimSpace(rec.Price),
			Categories:     cleanCategories(rec.Categories),
			PackInfo:       strings.TrimSpace(rec.PackInfo),
			URL:            strings.TrimSpace(rec.URL),
		}

		if price, unit, ok := ParsePrice(p.PriceText); ok {
			p.Price = &price
			p.PriceUnit = unit
		} else {
			report.Unpriced++
		}

		products = append(products, p)
	}

	report.Loaded = len(products)
	return products, report, nil
}

// cleanCategories trims tags and drops empty and repeated ones.
// The result is never nil.
func cleanCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
