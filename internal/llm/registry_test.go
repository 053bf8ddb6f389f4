package llm

import (
	"context"
	"testing"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	name       string
	models     []domain.ModelInfo
	configured bool
}

func (p *fakeProvider) Name() string               { return p.name }
func (p *fakeProvider) Models() []domain.ModelInfo { return p.models }
func (p *fakeProvider) DefaultModel() string       { return "" }
func (p *fakeProvider) IsConfigured() bool         { return p.configured }
func (p *fakeProvider) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	return nil, nil
}

func TestRegistry_ListSortsByTierThenName(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{
		name:       "acme",
		configured: true,
		models: []domain.ModelInfo{
			{ID: "z-prem", Name: "Zeta", Provider: "acme", PricingTier: domain.TierPremium},
			{ID: "b-cheap", Name: "beta", Provider: "acme", PricingTier: domain.TierCheap},
			{ID: "a-cheap", Name: "Alpha", Provider: "acme", PricingTier: domain.TierCheap},
			{ID: "f-free", Name: "Freebie", Provider: "acme", PricingTier: domain.TierFree},
		},
	})
	registry := NewRegistry(router, "", nil)

	catalog := registry.List(context.Background())

	ids := make([]string, 0, len(catalog.Models))
	for _, m := range catalog.Models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"f-free", "a-cheap", "b-cheap", "z-prem"}, ids)
}

func TestRegistry_ExactlyOneDefault(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{
		name:       "acme",
		configured: true,
		models: []domain.ModelInfo{
			{ID: "m1", Name: "M1", PricingTier: domain.TierCheap, IsDefault: true},
			{ID: "m2", Name: "M2", PricingTier: domain.TierCheap, IsDefault: true},
		},
	})
	registry := NewRegistry(router, "", nil)

	catalog := registry.List(context.Background())

	defaults := 0
	for _, m := range catalog.Models {
		if m.IsDefault {
			defaults++
			assert.Equal(t, catalog.Default, m.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestRegistry_ConfiguredDefaultWins(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{
		name:       "acme",
		configured: true,
		models: []domain.ModelInfo{
			{ID: "m1", Name: "M1", PricingTier: domain.TierCheap, IsDefault: true},
			{ID: "m2", Name: "M2", PricingTier: domain.TierStandard},
		},
	})
	registry := NewRegistry(router, "m2", nil)

	catalog := registry.List(context.Background())

	assert.Equal(t, "m2", catalog.Default)
}

func TestRegistry_EmptyCatalogFallsBack(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{name: "acme", configured: true})
	registry := NewRegistry(router, "", nil)

	catalog := registry.List(context.Background())

	assert.Len(t, catalog.Models, 1)
	assert.Equal(t, FallbackModel.ID, catalog.Models[0].ID)
	assert.True(t, catalog.Models[0].IsDefault)
	assert.Equal(t, FallbackModel.ID, catalog.Default)
}

func TestRegistry_SkipsUnconfiguredProviders(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{
		name:       "acme",
		configured: false,
		models:     []domain.ModelInfo{{ID: "hidden", Name: "Hidden", PricingTier: domain.TierCheap}},
	})
	registry := NewRegistry(router, "", nil)

	catalog := registry.List(context.Background())

	assert.Len(t, catalog.Models, 1)
	assert.Equal(t, FallbackModel.ID, catalog.Models[0].ID)
}

func TestRegistry_GetAgreesWithList(t *testing.T) {
	router := NewRouter("acme")
	router.RegisterProvider(&fakeProvider{
		name:       "acme",
		configured: true,
		models: []domain.ModelInfo{
			{ID: "m1", Name: "M1", PricingTier: domain.TierCheap, IsDefault: true},
		},
	})
	registry := NewRegistry(router, "", nil)
	ctx := context.Background()

	model, err := registry.Get(ctx, "m1")
	assert.NoError(t, err)
	assert.True(t, model.IsDefault)

	_, err = registry.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
