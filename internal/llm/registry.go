package llm

import (
	"context"
	"sort"
	"strings"

	"github.com/calderhq/sidechat/internal/domain"
)

// FallbackModel is synthesized when no provider reports any model, so
// callers never see an empty catalog.
var FallbackModel = domain.ModelInfo{
	ID:                "gpt-4o-mini",
	Name:              "GPT-4o mini",
	Provider:          "openai",
	Available:         true,
	PricingTier:       domain.TierCheap,
	PricingMultiplier: 1.0,
}

// Catalog is the resolved, sorted model listing with its default id
type Catalog struct {
	Models  []domain.ModelInfo `json:"models"`
	Default string             `json:"default"`
}

// CatalogCache caches an assembled catalog between requests
type CatalogCache interface {
	Get(ctx context.Context) (*Catalog, bool)
	Set(ctx context.Context, catalog *Catalog)
}

// Registry resolves the selectable model catalog from the configured
// providers. Catalogs are assembled per request (optionally through a
// cache), never persisted.
type Registry struct {
	router         *Router
	defaultModelID string
	cache          CatalogCache
}

// NewRegistry creates a model registry. defaultModelID may be empty;
// cache may be nil.
func NewRegistry(router *Router, defaultModelID string, cache CatalogCache) *Registry {
	return &Registry{
		router:         router,
		defaultModelID: defaultModelID,
		cache:          cache,
	}
}

// List returns the sorted model catalog with exactly one model marked
// default, consistent with Catalog.Default.
func (r *Registry) List(ctx context.Context) Catalog {
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx); ok {
			return *cached
		}
	}

	catalog := r.assemble()

	if r.cache != nil {
		r.cache.Set(ctx, &catalog)
	}
	return catalog
}

// Get looks a model up against the same resolved catalog as List, so
// IsDefault flags agree between the two views.
func (r *Registry) Get(ctx context.Context, id string) (domain.ModelInfo, error) {
	for _, m := range r.List(ctx).Models {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.ModelInfo{}, domain.ErrNotFound
}

// DefaultModelID resolves the catalog's default model id
func (r *Registry) DefaultModelID(ctx context.Context) string {
	return r.List(ctx).Default
}

func (r *Registry) assemble() Catalog {
	var models []domain.ModelInfo
	providerDefault := ""

	for _, p := range r.router.Providers() {
		if !p.IsConfigured() {
			continue
		}
		for _, m := range p.Models() {
			if m.IsDefault && providerDefault == "" {
				providerDefault = m.ID
			}
			m.IsDefault = false
			models = append(models, m)
		}
	}

	if len(models) == 0 {
		fallback := FallbackModel
		fallback.IsDefault = true
		return Catalog{Models: []domain.ModelInfo{fallback}, Default: fallback.ID}
	}

	sort.SliceStable(models, func(i, j int) bool {
		ri, rj := domain.TierRank(models[i].PricingTier), domain.TierRank(models[j].PricingTier)
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
	})

	defaultID := r.resolveDefault(models, providerDefault)
	for i := range models {
		models[i].IsDefault = models[i].ID == defaultID
	}

	return Catalog{Models: models, Default: defaultID}
}

// resolveDefault picks, in order: the explicitly configured default id if it
// exists in the catalog, the first provider-flagged default, then the
// fallback model id if present, finally the first model in sorted order.
func (r *Registry) resolveDefault(models []domain.ModelInfo, providerDefault string) string {
	contains := func(id string) bool {
		for _, m := range models {
			if m.ID == id {
				return true
			}
		}
		return false
	}

	if r.defaultModelID != "" && contains(r.defaultModelID) {
		return r.defaultModelID
	}
	if providerDefault != "" && contains(providerDefault) {
		return providerDefault
	}
	if contains(FallbackModel.ID) {
		return FallbackModel.ID
	}
	return models[0].ID
}
