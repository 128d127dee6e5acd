package scoring

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/crossinsure/crossinsure/pkg/model"
)

const (
	heuristicConfidence        = 0.6
	heuristicNoMatchConfidence = 0.7
	heuristicNoMatchScore      = 0.1
)

// Heuristic scores a claim from pattern signals alone. It is used whenever
// no reasoning provider is configured or the provider fails.
func Heuristic(ev *model.Evidence) *model.Judgment {
	if len(ev.Matches) == 0 {
		return &model.Judgment{
			RiskLevel:  model.RiskLevelLow,
			Score:      heuristicNoMatchScore,
			Confidence: heuristicNoMatchConfidence,
			RedFlags:   []string{"No similar historical incidents found"},
			Reasoning:  "First-time pattern. No historical matches found for comparison. Standard verification recommended.",
			Recommendations: []string{
				"Process as new claim pattern",
				"Standard documentation verification",
				"Monitor for future similar patterns",
			},
			Source: model.ScoredByHeuristic,
		}
	}

	var score float64
	var flags []string

	if ev.TopTemporal() > 0.7 {
		score += 0.3
		flags = append(flags, "Unusual timing pattern detected")
	}
	if ev.TopSpatial() > 0.7 {
		score += 0.3
		flags = append(flags, "High concentration of incidents in area")
	}
	if n := len(ev.Matches); n > 5 {
		score += 0.2
		flags = append(flags, fmt.Sprintf("Multiple similar incidents found (%d)", n))
	}

	descLen := utf8.RuneCountInString(ev.Claim.DamageDescription)
	switch {
	case descLen < 50:
		score += 0.1
		flags = append(flags, "Insufficient damage description")
	case descLen > 2000:
		score += 0.05
		flags = append(flags, "Unusually detailed description")
	}

	if len(flags) == 0 {
		flags = []string{"No significant red flags detected"}
	}

	score = math.Min(score, 1.0)
	return &model.Judgment{
		RiskLevel:  Tier(score),
		Score:      score,
		Confidence: heuristicConfidence,
		RedFlags:   flags,
		Reasoning:  "Basic heuristic analysis (Gemini AI unavailable). Review flagged patterns manually.",
		Recommendations: []string{
			"Manual review recommended for claims with multiple red flags",
			"Consider requesting additional documentation",
			"Verify claimant identity and history",
		},
		Source: model.ScoredByHeuristic,
	}
}

// Tier maps a heuristic score to a risk level
func Tier(score float64) model.RiskLevel {
	// heuristic scores are sums of 0.05 steps; drop float noise before comparing
	s := math.Round(score*1e6) / 1e6
	switch {
	case s >= 0.75:
		return model.RiskLevelCritical
	case s >= 0.5:
		return model.RiskLevelHigh
	case s >= 0.3:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelLow
	}
}
