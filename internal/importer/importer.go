package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductWriter interface {
	UpsertByTitle(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryLookup interface {
	GetByKey(ctx context.Context, key string) (*domain.Category, error)
}

// CSVImporter reads product CSV files and inserts or updates products by title.
//
// Columns: title, description, price, inventory, category_key, image_urls.
// image_urls is a "|" separated list. A row with an empty title adds its
// images to the product above it.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryLookup
	categoryID map[string]string
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryLookup) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:     csvr,
		products:   products,
		categories: categories,
		categoryID: make(map[string]string),
	}
}

type csvRow struct {
	line        int
	Title       string
	Description string
	Price       string
	Inventory   string
	CategoryKey string
	ImageURLs   []string
}

// Run parses CSV rows and upserts one product per titled row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["title"]; !ok {
		return 0, errors.New("missing title column")
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Title != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if current != nil {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return fmt.Errorf("row %d: invalid price %q for %q", row.line, row.Price, row.Title)
	}
	inventory := 0
	if row.Inventory != "" {
		if inventory, err = strconv.Atoi(row.Inventory); err != nil {
			return fmt.Errorf("row %d: invalid inventory %q for %q", row.line, row.Inventory, row.Title)
		}
	}

	p := domain.Product{
		Title:       row.Title,
		Description: row.Description,
		Price:       price,
		Inventory:   inventory,
		ImageURLs:   row.ImageURLs,
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("row %d: %w", row.line, err)
	}
	if row.CategoryKey != "" {
		id, err := i.category(ctx, row.CategoryKey)
		if err != nil {
			return fmt.Errorf("row %d: %w", row.line, err)
		}
		p.CategoryID = &id
	}

	if _, err := i.products.UpsertByTitle(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Title, err)
	}
	return nil
}

func (i *CSVImporter) category(ctx context.Context, key string) (string, error) {
	if id, ok := i.categoryID[key]; ok {
		return id, nil
	}
	if i.categories == nil {
		return "", fmt.Errorf("category %q given but no category lookup configured", key)
	}
	c, err := i.categories.GetByKey(ctx, key)
	if err != nil {
		return "", fmt.Errorf("category %q: %w", key, err)
	}
	i.categoryID[key] = c.ID
	return c.ID, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		Title:       pick(record, index, "title"),
		Description: pick(record, index, "description"),
		Price:       pick(record, index, "price"),
		Inventory:   pick(record, index, "inventory"),
		CategoryKey: pick(record, index, "category_key"),
	}
	for _, u := range strings.Split(pick(record, index, "image_urls"), "|") {
		if u = strings.TrimSpace(u); u != "" {
			row.ImageURLs = append(row.ImageURLs, u)
		}
	}
	if row.Title == "" && len(row.ImageURLs) == 0 {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
