package claim

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Review records analyst notes on the analysis of a claim and marks it reviewed.
// Scores, tier and recommendation are never changed.
func (u *UseCase) Review(
	ctx context.Context,
	ref model.ClaimReferenceID,
	notes string,
) (*model.FraudAnalysisResult, error) {
	claim, err := u.repo.GetClaim(ctx, ref)
	if err != nil {
		return nil, err
	}

	analysis, err := u.repo.GetAnalysis(ctx, claim.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "claim has no analysis to review", goerr.V("reference_id", ref))
	}

	analysis.Review(notes, u.now())
	if err := u.repo.UpdateReview(ctx, analysis); err != nil {
		return nil, err
	}

	logging.Audit(ctx).Info("claim reviewed",
		"reference_id", ref,
		"risk_level", analysis.RiskLevel,
	)

	return analysis, nil
}
