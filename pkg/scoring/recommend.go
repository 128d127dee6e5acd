package scoring

import "github.com/crossinsure/crossinsure/pkg/model"

// Recommend maps a tier and score to the action suggested to the adjuster
func Recommend(level model.RiskLevel, score float64) model.Recommendation {
	switch level {
	case model.RiskLevelHigh, model.RiskLevelCritical:
		return model.RecommendationInvestigate
	case model.RiskLevelMedium:
		return model.RecommendationHold
	}
	if score > 0.5 {
		return model.RecommendationHold
	}
	return model.RecommendationProceed
}
