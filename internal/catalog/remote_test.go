package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/catalog"
)

type stubFetcher struct {
	body []byte
	err  error
}

func (s *stubFetcher) Get(context.Context, string) ([]byte, error) { return s.body, s.err }

func TestRemoteSourceRefresh(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`{"products":[{"id":"stool","name":"Stool","description":"Bar stool","basePrice":"89.50","category":"kitchen","options":{"colors":[{"id":"oak","name":"Oak","price":0}],"materials":[],"features":[]}}]}`)}
	src := catalog.NewRemoteSource(fetcher, "http://catalog.local/products.json", zerolog.Nop())
	ctx := context.Background()

	_, err := src.GetProduct(ctx, "stool")
	require.Error(t, err, "unloaded source must not serve")

	require.NoError(t, src.Refresh(ctx))
	p, err := src.GetProduct(ctx, "stool")
	require.NoError(t, err)
	require.Equal(t, "89.5", p.BasePrice.String())

	fetcher.err = errors.New("upstream down")
	require.Error(t, src.Refresh(ctx))

	p, err = src.GetProduct(ctx, "stool")
	require.NoError(t, err, "previous dataset keeps serving")
	require.Equal(t, "Stool", p.Name)
}
