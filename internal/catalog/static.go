package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Static is an in-memory Repository over a fixed product list. It is safe
// for concurrent use.
type Static struct {
	products []Product
	byID     map[string]int
	lang     language.Tag
}

// StaticOption customises a Static repository.
type StaticOption func(*Static)

// WithCollation sets the language used to order products by name.
func WithCollation(tag language.Tag) StaticOption {
	return func(s *Static) { s.lang = tag }
}

// NewStatic builds a repository over products, preserving their order. Later
// duplicates of an id are rejected, as are ids ValidateID refuses.
func NewStatic(products []Product, opts ...StaticOption) (*Static, error) {
	s := &Static{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
		lang:     language.English,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range products {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p.Clone())
	}
	return s, nil
}

// GetProduct returns the product with the given id.
func (s *Static) GetProduct(_ context.Context, id string) (Product, error) {
	idx, ok := s.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("get product %q: %w", id, ErrNotFound)
	}
	return s.products[idx].Clone(), nil
}

// ListProducts applies filter to the catalog.
func (s *Static) ListProducts(_ context.Context, filter Filter) ([]Product, error) {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && p.BasePrice.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.BasePrice.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		out = append(out, p.Clone())
	}
	s.sortProducts(out, filter.Sort)
	return out, nil
}

func (s *Static) sortProducts(items []Product, key string) {
	switch key {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].BasePrice.LessThan(items[j].BasePrice) })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].BasePrice.GreaterThan(items[j].BasePrice) })
	case SortNameAsc, SortNameDesc:
		// collate.Collator is not safe for concurrent use.
		c := collate.New(s.lang, collate.IgnoreCase)
		desc := key == SortNameDesc
		sort.SliceStable(items, func(i, j int) bool {
			cmp := c.CompareString(items[i].Name, items[j].Name)
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
}

// ListOptionGroup returns the options of one group. An unknown group yields an
// empty list.
func (s *Static) ListOptionGroup(ctx context.Context, productID string, group Group) ([]Option, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	opts := p.Group(group)
	if opts == nil {
		return []Option{}, nil
	}
	return opts, nil
}

// ListCategories returns the distinct categories in first-seen order.
func (s *Static) ListCategories(context.Context) ([]Category, error) {
	seen := make(map[string]struct{})
	out := make([]Category, 0)
	for _, p := range s.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, Category{ID: p.Category, Name: CategoryName(p.Category)})
	}
	return out, nil
}

// ListRelated returns up to limit other products, same category first.
func (s *Static) ListRelated(ctx context.Context, productID string, limit int) ([]Product, error) {
	current, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	out := make([]Product, 0, limit)
	for _, p := range s.products {
		if len(out) == limit {
			break
		}
		if p.ID != productID && p.Category == current.Category {
			out = append(out, p.Clone())
		}
	}
	for _, p := range s.products {
		if len(out) == limit {
			break
		}
		if p.ID != productID && p.Category != current.Category {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// CategoryName renders a camelCase or snake_case category id for display:
// "homeOffice" becomes "Home Office" and "living_room" becomes "Living room".
func CategoryName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
