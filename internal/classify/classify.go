// Package classify validates and normalizes raw prediction payloads before
// they reach the cache engine. Classification here is deliberately thin:
// confidence banding is decided upstream by the generator, so the
// classifier's whole job is shape validation plus category resolution.
package classify

import (
	"fmt"
	"strings"

	"github.com/tipgate/tipgate/internal/prediction"
)

// RawPrediction is the ingestion payload shape accepted from external
// sources (pipeline pushes and manual-entry documents). Required nested
// objects are pointers so absence is distinguishable from zero values.
type RawPrediction struct {
	MatchID    int64                 `json:"matchId"`
	Sport      string                `json:"sport"`
	Category   string                `json:"category,omitempty"`
	VIP        bool                  `json:"isVip,omitempty"`
	Tip        string                `json:"tip"`
	Confidence int                   `json:"confidence"`
	HomeTeam   *prediction.Team      `json:"homeTeam"`
	AwayTeam   *prediction.Team      `json:"awayTeam"`
	League     *prediction.League    `json:"league"`
	Fixture    prediction.Fixture    `json:"fixture"`
	Reasoning  *prediction.Reasoning `json:"reasoning,omitempty"`
}

// ValidationError carries every constraint the payload violated, not just
// the first, so ingestion callers can report a complete diagnostic.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "classify: invalid prediction: " + strings.Join(e.Violations, "; ")
}

// Classify validates the raw payload and, on success, returns the
// normalized record ready for the store. Pure and deterministic: no I/O,
// no clock reads; LastUpdated is owned by the store's put.
//
// Category resolution: an explicit category is authoritative; the legacy
// isVip flag only applies when no category is supplied. A payload with
// neither is rejected because banding is decided upstream.
func Classify(raw RawPrediction) (prediction.Prediction, error) {
	var violations []string

	if raw.MatchID <= 0 {
		violations = append(violations, "matchId: must be a positive integer")
	}

	sport := prediction.Sport(strings.ToLower(strings.TrimSpace(raw.Sport)))
	if !sport.Known() {
		violations = append(violations, fmt.Sprintf("sport: unrecognized value %q", raw.Sport))
	}

	category, catViolation := resolveCategory(raw)
	if catViolation != "" {
		violations = append(violations, catViolation)
	}

	tip := strings.TrimSpace(raw.Tip)
	if tip == "" {
		violations = append(violations, "tip: must not be empty")
	}

	// Out-of-range confidence is rejected, never clamped.
	if raw.Confidence < 0 || raw.Confidence > 100 {
		violations = append(violations, fmt.Sprintf("confidence: %d outside [0,100]", raw.Confidence))
	}

	if raw.HomeTeam == nil || strings.TrimSpace(raw.HomeTeam.Name) == "" {
		violations = append(violations, "homeTeam: required")
	}
	if raw.AwayTeam == nil || strings.TrimSpace(raw.AwayTeam.Name) == "" {
		violations = append(violations, "awayTeam: required")
	}
	if raw.League == nil || strings.TrimSpace(raw.League.Name) == "" {
		violations = append(violations, "league: required")
	}
	if raw.Fixture.Date.IsZero() {
		violations = append(violations, "fixture.date: required")
	}

	if len(violations) > 0 {
		return prediction.Prediction{}, &ValidationError{Violations: violations}
	}

	out := prediction.Prediction{
		MatchID:    raw.MatchID,
		Sport:      sport,
		Category:   category,
		Tip:        tip,
		Confidence: raw.Confidence,
		HomeTeam:   *raw.HomeTeam,
		AwayTeam:   *raw.AwayTeam,
		League:     *raw.League,
		Fixture:    raw.Fixture,
		Reasoning:  raw.Reasoning,
	}
	return out.Clone(), nil
}

func resolveCategory(raw RawPrediction) (prediction.Category, string) {
	if trimmed := strings.ToLower(strings.TrimSpace(raw.Category)); trimmed != "" {
		category := prediction.Category(trimmed)
		if !category.Known() {
			return "", fmt.Sprintf("category: unrecognized value %q", raw.Category)
		}
		return category, ""
	}
	if raw.VIP {
		return prediction.CategoryVIP, ""
	}
	return "", "category: required when isVip is not set"
}
