package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) UpsertByTitle(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

type stubCategories struct {
	byKey   map[string]domain.Category
	lookups int
}

func (s *stubCategories) GetByKey(_ context.Context, key string) (*domain.Category, error) {
	s.lookups++
	c, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `title,description,price,inventory,category_key,image_urls
Desk Lamp,Brass lamp,24.90,12,lighting,https://example.com/lamp1.jpg
,,,,,https://example.com/lamp2.jpg|https://example.com/lamp3.jpg
Floor Lamp,,89.00,3,lighting,
Mug,Stoneware,7.5,,,`

	repo := &stubProductRepo{}
	cats := &stubCategories{byKey: map[string]domain.Category{"lighting": {ID: "cat-1", Key: "lighting"}}}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, cats)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 products imported, got %d", count)
	}
	if len(repo.items) != 3 {
		t.Fatalf("expected 3 products saved, got %d", len(repo.items))
	}

	lamp := repo.items[0]
	if lamp.Title != "Desk Lamp" || lamp.Price.String() != "24.9" || lamp.Inventory != 12 {
		t.Fatalf("unexpected product data: %+v", lamp)
	}
	if len(lamp.ImageURLs) != 3 {
		t.Fatalf("expected 3 images on first product, got %v", lamp.ImageURLs)
	}
	if lamp.CategoryID == nil || *lamp.CategoryID != "cat-1" {
		t.Fatalf("expected category cat-1, got %v", lamp.CategoryID)
	}
	if cats.lookups != 1 {
		t.Fatalf("expected category key to be resolved once, got %d lookups", cats.lookups)
	}

	mug := repo.items[2]
	if mug.Inventory != 0 || mug.CategoryID != nil || mug.ImageURLs == nil {
		t.Fatalf("unexpected defaults on mug: %+v", mug)
	}
}

func TestCSVImporter_RunRejectsBadRows(t *testing.T) {
	tests := map[string]string{
		"bad price":        "title,price\nLamp,abc\n",
		"zero price":       "title,price\nLamp,0\n",
		"bad inventory":    "title,price,inventory\nLamp,1.00,many\n",
		"unknown category": "title,price,category_key\nLamp,1.00,nope\n",
		"no title column":  "name,price\nLamp,1.00\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			imp := NewCSVImporter(strings.NewReader(data), repo, &stubCategories{})
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing saved, got %d", len(repo.items))
			}
		})
	}
}

func TestCSVImporter_RunStopsAtFirstError(t *testing.T) {
	data := "title,price\nLamp,1.00\nBroken,x\nMug,2.00\n"
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(data), repo, nil)

	count, err := imp.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "row 3") {
		t.Fatalf("expected row 3 error, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 product before the error, got %d", count)
	}
}
