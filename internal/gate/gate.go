// Package gate is the single enforcement point for viewer-tier
// visibility. No other layer may re-derive access decisions; list and
// detail views both go through here so the two can never drift.
package gate

import (
	"github.com/tipgate/tipgate/internal/prediction"
)

// visibility is the category/tier table from the access contract. A
// missing entry means the record is withheld entirely — no redacted
// placeholder, no existence leak.
var visibility = map[prediction.Category]map[prediction.Tier]bool{
	prediction.CategoryBanker: {
		prediction.TierAnonymous:     true,
		prediction.TierAuthenticated: true,
		prediction.TierVIP:           true,
	},
	prediction.CategorySurprise: {
		prediction.TierAnonymous:     true,
		prediction.TierAuthenticated: true,
		prediction.TierVIP:           true,
	},
	prediction.CategoryVIP: {
		prediction.TierVIP: true,
	},
}

// Visible reports whether the tier may see records of the category.
// Unrecognized tiers get anonymous treatment; trusting an unknown claim
// upward would widen access on a typo.
func Visible(category prediction.Category, tier prediction.Tier) bool {
	if !tier.Known() {
		tier = prediction.TierAnonymous
	}
	return visibility[category][tier]
}

// Filter drops records the tier may not see, preserving input ordering
// for the retained entries. List semantics are silent omission, never an
// error.
func Filter(records []prediction.Prediction, tier prediction.Tier) []prediction.Prediction {
	out := make([]prediction.Prediction, 0, len(records))
	for _, record := range records {
		if Visible(record.Category, tier) {
			out = append(out, record)
		}
	}
	return out
}

// Authorize is the single-record variant for detail lookups. A denied
// record returns prediction.ErrDenied — deliberately distinct from
// ErrNotFound so callers can prompt an upgrade instead of reporting a
// missing match.
func Authorize(record prediction.Prediction, tier prediction.Tier) (prediction.Prediction, error) {
	if !Visible(record.Category, tier) {
		return prediction.Prediction{}, prediction.ErrDenied
	}
	return record, nil
}
