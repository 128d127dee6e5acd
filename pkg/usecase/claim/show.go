package claim

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// Detail is a stored claim together with its analysis, if any
type Detail struct {
	Claim    *model.Claim
	Analysis *model.FraudAnalysisResult
}

// Show retrieves a claim by reference id. Unprocessed claims come back without analysis.
func (u *UseCase) Show(
	ctx context.Context,
	ref model.ClaimReferenceID,
) (*Detail, error) {
	claim, err := u.repo.GetClaim(ctx, ref)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Claim: claim}
	if !claim.Processed {
		return detail, nil
	}

	analysis, err := u.repo.GetAnalysis(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	detail.Analysis = analysis

	return detail, nil
}
