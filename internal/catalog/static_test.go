package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/catalog"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "chair", Name: "Office Chair", Description: "Ergonomic seat", BasePrice: dec("199"), Category: "office",
			Options: catalog.Options{
				Colors:    []catalog.Option{{ID: "black", Name: "Black", Price: dec("0")}, {ID: "blue", Name: "Blue", Price: dec("20")}},
				Materials: []catalog.Option{{ID: "mesh", Name: "Mesh", Price: dec("30")}},
			}},
		{ID: "sofa", Name: "Ébène Sofa", Description: "Velvet couch", BasePrice: dec("1199"), Category: "livingRoom"},
		{ID: "desk", Name: "desk", Description: "Standing desk", BasePrice: dec("449"), Category: "office"},
		{ID: "lamp", Name: "Lamp", Description: "LED office light", BasePrice: dec("59"), Category: "home_office"},
	}
}

func newStatic(t *testing.T) *catalog.Static {
	t.Helper()
	repo, err := catalog.NewStatic(sampleProducts())
	require.NoError(t, err)
	return repo
}

func ids(items []catalog.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

func TestStaticGetProduct(t *testing.T) {
	repo := newStatic(t)
	ctx := context.Background()

	p, err := repo.GetProduct(ctx, "chair")
	require.NoError(t, err)
	require.Equal(t, "Office Chair", p.Name)

	_, err = repo.GetProduct(ctx, "throne")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStaticReturnsCopies(t *testing.T) {
	repo := newStatic(t)
	ctx := context.Background()

	p, err := repo.GetProduct(ctx, "chair")
	require.NoError(t, err)
	p.Options.Colors[0].Name = "Mutated"
	p.Name = "Mutated"

	again, err := repo.GetProduct(ctx, "chair")
	require.NoError(t, err)
	require.Equal(t, "Office Chair", again.Name)
	require.Equal(t, "Black", again.Options.Colors[0].Name)
}

func TestNewStaticRejectsDuplicates(t *testing.T) {
	_, err := catalog.NewStatic([]catalog.Product{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)
}

func TestNewStaticRejectsUnshareableIDs(t *testing.T) {
	opt := func(id string) []catalog.Option { return []catalog.Option{{ID: id, Name: id}} }
	manyFeatures := make([]catalog.Option, catalog.MaxFeatures+1)
	for i := range manyFeatures {
		manyFeatures[i] = catalog.Option{ID: strings.Repeat("f", i+1)}
	}

	tests := []struct {
		name    string
		product catalog.Product
	}{
		{"blank product id", catalog.Product{ID: "  "}},
		{"parenthesis in product id", catalog.Product{ID: "desk(xl)"}},
		{"slash in product id", catalog.Product{ID: "kits/desk"}},
		{"overlong product id", catalog.Product{ID: strings.Repeat("d", catalog.MaxIDLength+1)}},
		{"separator in feature id", catalog.Product{ID: "desk", Options: catalog.Options{Features: opt("usb,c")}}},
		{"brace in color id", catalog.Product{ID: "desk", Options: catalog.Options{Colors: opt("{red}")}}},
		{"backslash in material id", catalog.Product{ID: "desk", Options: catalog.Options{Materials: opt(`oak\1`)}}},
		{"empty option id", catalog.Product{ID: "desk", Options: catalog.Options{Colors: opt("")}}},
		{"duplicate option id", catalog.Product{ID: "desk", Options: catalog.Options{Features: append(opt("usb"), opt("usb")...)}}},
		{"too many features", catalog.Product{ID: "desk", Options: catalog.Options{Features: manyFeatures}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.NewStatic([]catalog.Product{tc.product})
			require.Error(t, err)
		})
	}

	_, err := catalog.NewStatic([]catalog.Product{{ID: "desk-xl_2", Options: catalog.Options{Features: opt("usb-c")}}})
	require.NoError(t, err)
}

func TestListProductsFilters(t *testing.T) {
	repo := newStatic(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter catalog.Filter
		want   []string
	}{
		{"empty filter keeps order", catalog.Filter{}, []string{"chair", "sofa", "desk", "lamp"}},
		{"category", catalog.Filter{Category: "office"}, []string{"chair", "desk"}},
		{"inclusive min", catalog.Filter{MinPrice: decPtr("449")}, []string{"sofa", "desk"}},
		{"inclusive max", catalog.Filter{MaxPrice: decPtr("199")}, []string{"chair", "lamp"}},
		{"search name and description", catalog.Filter{Search: "OFFICE"}, []string{"chair", "lamp"}},
		{"price asc", catalog.Filter{Sort: catalog.SortPriceAsc}, []string{"lamp", "chair", "desk", "sofa"}},
		{"price desc", catalog.Filter{Sort: catalog.SortPriceDesc}, []string{"sofa", "desk", "chair", "lamp"}},
		{"name asc is locale aware", catalog.Filter{Sort: catalog.SortNameAsc}, []string{"desk", "sofa", "lamp", "chair"}},
		{"name desc", catalog.Filter{Sort: catalog.SortNameDesc}, []string{"chair", "lamp", "sofa", "desk"}},
		{"unknown sort keeps order", catalog.Filter{Sort: "popularity"}, []string{"chair", "sofa", "desk", "lamp"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.ListProducts(ctx, tc.filter)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(got))
		})
	}
}

func TestListProductsPriceSortIsStable(t *testing.T) {
	repo, err := catalog.NewStatic([]catalog.Product{
		{ID: "a", BasePrice: dec("10")},
		{ID: "b", BasePrice: dec("5")},
		{ID: "c", BasePrice: dec("10")},
	})
	require.NoError(t, err)
	got, err := repo.ListProducts(context.Background(), catalog.Filter{Sort: catalog.SortPriceDesc})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b"}, ids(got))
}

func TestListOptionGroup(t *testing.T) {
	repo := newStatic(t)
	ctx := context.Background()

	colors, err := repo.ListOptionGroup(ctx, "chair", catalog.Colors)
	require.NoError(t, err)
	require.Len(t, colors, 2)

	features, err := repo.ListOptionGroup(ctx, "chair", catalog.Features)
	require.NoError(t, err)
	require.Empty(t, features)

	unknown, err := repo.ListOptionGroup(ctx, "chair", catalog.Group("finishes"))
	require.NoError(t, err)
	require.NotNil(t, unknown)
	require.Empty(t, unknown)

	_, err = repo.ListOptionGroup(ctx, "nope", catalog.Colors)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListCategories(t *testing.T) {
	cats, err := newStatic(t).ListCategories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []catalog.Category{
		{ID: "office", Name: "Office"},
		{ID: "livingRoom", Name: "Living Room"},
		{ID: "home_office", Name: "Home office"},
	}, cats)
}

func TestListRelated(t *testing.T) {
	repo := newStatic(t)
	ctx := context.Background()

	related, err := repo.ListRelated(ctx, "chair", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"desk", "sofa", "lamp"}, ids(related))

	related, err = repo.ListRelated(ctx, "chair", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"desk", "sofa"}, ids(related))

	_, err = repo.ListRelated(ctx, "nope", 4)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestFindOption(t *testing.T) {
	p := sampleProducts()[0]
	opt, ok := p.FindOption(catalog.Colors, "blue")
	require.True(t, ok)
	require.True(t, opt.Price.Equal(dec("20")))

	_, ok = p.FindOption(catalog.Materials, "blue")
	require.False(t, ok, "identity is scoped to the group")
}

func TestDefaultDataset(t *testing.T) {
	repo, err := catalog.NewDefault()
	require.NoError(t, err)

	chair, err := repo.GetProduct(context.Background(), "chair")
	require.NoError(t, err)
	require.True(t, chair.BasePrice.Equal(dec("199")))
	require.Len(t, chair.Options.Features, 4)
	require.Nil(t, chair.ShippingAdjustment)

	desk, err := repo.GetProduct(context.Background(), "desk")
	require.NoError(t, err)
	require.NotNil(t, desk.ShippingAdjustment)
	require.True(t, desk.ShippingAdjustment.Equal(dec("25")))
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := catalog.LoadYAML(strings.NewReader("products:\n  - id: x\n    colour: red\n"))
	require.Error(t, err)
}

func TestParseGroup(t *testing.T) {
	g, ok := catalog.ParseGroup("material")
	require.True(t, ok)
	require.Equal(t, catalog.Materials, g)
	_, ok = catalog.ParseGroup("finish")
	require.False(t, ok)
}
