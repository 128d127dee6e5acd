// Package scoring turns similarity evidence into a fraud risk tier, a
// recommended action and a human-readable explanation.
package scoring

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
)

type Scorer struct {
	reasoner interfaces.Reasoner
}

// New creates a scorer. reasoner may be nil, then every claim is scored heuristically.
func New(reasoner interfaces.Reasoner) *Scorer {
	return &Scorer{reasoner: reasoner}
}

// Score asks the reasoner first and falls back to Heuristic on any failure.
// It always returns a judgment.
func (x *Scorer) Score(ctx context.Context, ev *model.Evidence) *model.Judgment {
	if x.reasoner == nil {
		return Heuristic(ev)
	}

	j, err := x.reasoner.Reason(ctx, ev)
	if err != nil {
		logging.From(ctx).Warn("reasoning provider failed, using heuristic",
			"error", err,
			"reference_id", ev.Claim.ReferenceID,
		)
		return Heuristic(ev)
	}
	if err := j.RiskLevel.Validate(); err != nil {
		logging.From(ctx).Warn("reasoning provider returned invalid tier, using heuristic", "error", err)
		return Heuristic(ev)
	}

	j.Score = clamp(j.Score)
	j.Confidence = clamp(j.Confidence)
	return j
}

// Assess completes an analysis result from a judgment: recommendation,
// explanation and risk factors.
func Assess(claim *model.Claim, ev *model.Evidence, j *model.Judgment) *model.FraudAnalysisResult {
	result := &model.FraudAnalysisResult{
		ID:               model.NewAnalysisID(),
		ClaimID:          claim.ID,
		ClaimReferenceID: claim.ReferenceID,
		RiskScore:        j.Score,
		RiskLevel:        j.RiskLevel,
		Recommendation:   Recommend(j.RiskLevel, j.Score),
		Confidence:       j.Confidence,
		MatchCount:       len(ev.Matches),
		Matches:          ev.Matches,
		RiskFactors:      RiskFactors(ev.Matches, ev.SeverityScore),
		RedFlags:         j.RedFlags,
		Recommendations:  j.Recommendations,
		Explanation:      Explain(j.Score, j.RiskLevel, ev.Matches),
		ScoredBy:         j.Source,
		AnalyzedAt:       ev.Now,
		UpdatedAt:        ev.Now,
	}
	if result.Matches == nil {
		result.Matches = []*model.Match{}
	}

	if len(ev.Matches) > 0 {
		top := ev.Matches[0]
		id := top.FingerprintID
		scores := top.Scores
		result.MatchedFingerprintID = &id
		result.TopScores = &scores
		if !top.IncidentDate.IsZero() {
			days := top.DaysSince(ev.Now)
			result.DaysSinceMatch = &days
		}
	}
	return result
}
