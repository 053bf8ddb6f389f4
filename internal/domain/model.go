package domain

// PricingTier is a coarse cost classification used to order model listings
type PricingTier string

const (
	TierFree     PricingTier = "free"
	TierCheap    PricingTier = "cheap"
	TierStandard PricingTier = "standard"
	TierPremium  PricingTier = "premium"
)

// TierRank returns the sort position of a pricing tier; unknown tiers sort last
func TierRank(t PricingTier) int {
	switch t {
	case TierFree:
		return 0
	case TierCheap:
		return 1
	case TierStandard:
		return 2
	case TierPremium:
		return 3
	}
	return 4
}

// ModelInfo describes one selectable AI model. Not persisted; resolved per
// request from the provider catalogs.
type ModelInfo struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Provider          string      `json:"provider"`
	Available         bool        `json:"available"`
	IsDefault         bool        `json:"is_default"`
	PricingTier       PricingTier `json:"pricing_tier"`
	PricingMultiplier float64     `json:"pricing_multiplier"`
}
