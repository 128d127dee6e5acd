package claim

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// Stats summarizes stored claims, fingerprints and analysis tiers
func (u *UseCase) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := u.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.ByRiskLevel == nil {
		stats.ByRiskLevel = make(map[model.RiskLevel]int64)
	}
	for _, level := range model.RiskLevels {
		if _, ok := stats.ByRiskLevel[level]; !ok {
			stats.ByRiskLevel[level] = 0
		}
	}
	return stats, nil
}
