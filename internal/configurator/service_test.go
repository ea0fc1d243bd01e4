package configurator_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/configurator"
	"github.com/noah-isme/backend-configurator/internal/pricing"
)

type stubDecoder struct {
	cfg     configurator.Configuration
	product *catalog.Product
	err     error
	got     url.Values
}

func (d *stubDecoder) Decode(_ context.Context, values url.Values) (configurator.Configuration, *catalog.Product, error) {
	d.got = values
	return d.cfg, d.product, d.err
}

func newService(t *testing.T, dec configurator.Decoder) *configurator.Service {
	t.Helper()
	repo, err := catalog.NewDefault()
	require.NoError(t, err)
	return configurator.NewService(repo, nil, dec)
}

func TestServiceScenario(t *testing.T) {
	svc := newService(t, nil)
	ctx := t.Context()

	require.NoError(t, svc.SelectProduct(ctx, "chair"))
	require.NoError(t, svc.SelectColor(ctx, "blue"))
	require.NoError(t, svc.SelectMaterial(ctx, "leather"))
	require.NoError(t, svc.ToggleFeature(ctx, "armrests"))
	requireMoney(t, "299", svc.Machine().Snapshot().TotalPrice)

	engine, err := pricing.NewDefaultEngine()
	require.NoError(t, err)
	b, err := svc.Quote(engine, pricing.Options{Region: "US", ShippingMethod: "standard"})
	require.NoError(t, err)
	requireMoney(t, "299", b.BasePrice)
	requireMoney(t, "21.6775", b.Tax.Amount)
	requireMoney(t, "15", b.Shipping)
	requireMoney(t, "335.6775", b.Total)
}

func TestServiceSelectProductNotFound(t *testing.T) {
	svc := newService(t, nil)

	err := svc.SelectProduct(t.Context(), "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Empty(t, svc.Machine().Snapshot().ProductID)
}

func TestServiceRejectsForeignOptions(t *testing.T) {
	svc := newService(t, nil)
	ctx := t.Context()
	require.NoError(t, svc.SelectProduct(ctx, "chair"))

	require.ErrorIs(t, svc.SelectColor(ctx, "walnut"), configurator.ErrInvalidSelection)
	require.ErrorIs(t, svc.SelectMaterial(ctx, "oak"), configurator.ErrInvalidSelection)
	require.ErrorIs(t, svc.ToggleFeature(ctx, "usb"), configurator.ErrInvalidSelection)

	cfg := svc.Machine().Snapshot()
	require.Nil(t, cfg.Color)
	require.Nil(t, cfg.Material)
	require.Empty(t, cfg.Features)
	requireMoney(t, "199", cfg.TotalPrice)
}

func TestServiceRequiresProduct(t *testing.T) {
	svc := newService(t, nil)
	ctx := t.Context()

	require.ErrorIs(t, svc.SelectColor(ctx, "blue"), configurator.ErrInvalidSelection)
	require.ErrorIs(t, svc.ToggleFeature(ctx, "armrests"), configurator.ErrNoProduct)

	engine, err := pricing.NewDefaultEngine()
	require.NoError(t, err)
	_, err = svc.Quote(engine, pricing.Options{})
	require.ErrorIs(t, err, configurator.ErrNoProduct)
}

func TestServiceToggleRemovesWithoutLookup(t *testing.T) {
	p := chair(t)
	stale := catalog.Option{ID: "gone", Name: "Discontinued"}
	m := configurator.NewMachine()
	m.Load(configurator.Configuration{ProductID: "chair", Features: []catalog.Option{stale}}, &p)
	repo, err := catalog.NewDefault()
	require.NoError(t, err)
	svc := configurator.NewService(repo, m, nil)

	require.NoError(t, svc.ToggleFeature(t.Context(), "gone"))
	require.False(t, m.IsFeatureSelected("gone"))
}

func TestServiceRestore(t *testing.T) {
	p := chair(t)
	red := option(t, p, catalog.Colors, "red")
	dec := &stubDecoder{
		cfg:     configurator.Configuration{ID: "abc", ProductID: "chair", Color: &red, Features: []catalog.Option{}},
		product: &p,
	}
	svc := newService(t, dec)
	svc.Machine().Advance()

	values := url.Values{"product": {"chair"}}
	require.NoError(t, svc.Restore(t.Context(), values))
	require.Equal(t, values, dec.got)
	require.Equal(t, "abc", svc.Machine().Snapshot().ID)
	require.Equal(t, "red", svc.Machine().Snapshot().Color.ID)
	require.Equal(t, 2, svc.Machine().Step())
}

func TestServiceRestoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := newService(t, &stubDecoder{err: boom})
	require.NoError(t, svc.SelectProduct(t.Context(), "chair"))

	require.ErrorIs(t, svc.Restore(t.Context(), url.Values{}), boom)
	require.Equal(t, "chair", svc.Machine().Snapshot().ProductID)

	require.Error(t, newService(t, nil).Restore(t.Context(), url.Values{}))
}
