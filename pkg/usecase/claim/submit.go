package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crossinsure/crossinsure/pkg/fingerprint"
	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/scoring"
	"github.com/crossinsure/crossinsure/pkg/similarity"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const maxParallelDescribe = 2

// SubmitAndAnalyze stores a new claim, screens it against every historical
// incident and returns the analysis. Validation failures wrap model.ErrValidation
// and leave no trace. Any later failure rolls back every write of this call and
// returns ErrProcessing.
func (u *UseCase) SubmitAndAnalyze(
	ctx context.Context,
	submitter model.Submitter,
	input model.ClaimInput,
	images []model.ImagePayload,
) (*model.AnalysisResult, error) {
	if err := validate(&input, images); err != nil {
		return nil, err
	}

	started := u.now()
	claim := model.NewClaim(input, submitter, len(images), started)
	sm := &stateMachine{ref: claim.ReferenceID}

	ctx = logging.With(ctx, logging.From(ctx).With("reference_id", claim.ReferenceID))

	tx, err := u.repo.Begin(ctx)
	if err != nil {
		return nil, u.failed(ctx, sm, claim, started, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logging.From(ctx).Error("failed to rollback claim", "error", err)
		}
	}()

	result, err := u.process(ctx, sm, tx, claim, images)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logging.From(ctx).Error("failed to rollback claim", "error", rbErr)
		}
		return nil, u.failed(ctx, sm, claim, started, err)
	}

	elapsed := u.now().Sub(started)
	logging.Audit(ctx).Info("claim analyzed",
		"reference_id", claim.ReferenceID,
		"organization", claim.Submitter.OrganizationName(),
		"risk_level", result.RiskLevel,
		"risk_score", result.RiskScore,
		"recommendation", result.Recommendation,
		"match_count", result.MatchCount,
		"scored_by", result.ScoredBy,
		"duration", elapsed,
	)

	return &model.AnalysisResult{
		FraudAnalysisResult: result,
		State:               sm.state,
		ProcessingTime:      elapsed,
	}, nil
}

func (u *UseCase) process(
	ctx context.Context,
	sm *stateMachine,
	tx interfaces.Tx,
	claim *model.Claim,
	images []model.ImagePayload,
) (*model.FraudAnalysisResult, error) {
	if err := tx.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}
	if err := sm.advance(ctx, model.StateCreated); err != nil {
		return nil, err
	}

	u.archive(ctx, claim, images)
	descriptions := u.describe(ctx, images)
	if err := sm.advance(ctx, model.StateImagesProcessed); err != nil {
		return nil, err
	}

	textVec := u.gateway.EmbedText(ctx, claim.DamageDescription)
	imageVec, err := u.gateway.EmbedImages(ctx, images)
	if err != nil {
		return nil, err
	}
	if err := sm.advance(ctx, model.StateEmbedded); err != nil {
		return nil, err
	}

	severity := fingerprint.Severity(claim.DamageDescription, len(images))
	fp := &model.IncidentFingerprint{
		ID:                    model.NewFingerprintID(),
		ClaimID:               claim.ID,
		ClaimReferenceID:      claim.ReferenceID,
		ImageEmbedding:        imageVec.Values,
		TextEmbedding:         textVec.Values,
		SpatialFingerprint:    fingerprint.Spatial(claim.LocationZone),
		TemporalFingerprint:   fingerprint.Temporal(claim.IncidentDate, claim.TimeWindow.Start, claim.TimeWindow.End),
		IncidentTypeCode:      claim.IncidentType,
		SeverityScore:         severity,
		EmbeddingModelVersion: u.gateway.ModelVersion(textVec.Fallback || imageVec.Fallback),
	}
	logging.From(ctx).Debug("claim fingerprinted",
		"severity", severity,
		"severity_label", fingerprint.SeverityLabel(severity),
		"placeholder_image", imageVec.Placeholder,
	)
	if err := sm.advance(ctx, model.StateFingerprinted); err != nil {
		return nil, err
	}

	matches, err := u.similarity.FindMatches(ctx, tx, &similarity.Query{
		TextEmbedding:       fp.TextEmbedding,
		ImageEmbedding:      fp.ImageEmbedding,
		SpatialFingerprint:  fp.SpatialFingerprint,
		TemporalFingerprint: fp.TemporalFingerprint,
		IncidentType:        fp.IncidentTypeCode,
	})
	if err != nil {
		return nil, err
	}
	if err := sm.advance(ctx, model.StateMatched); err != nil {
		return nil, err
	}

	now := u.now()
	evidence := &model.Evidence{
		Claim:             claim,
		SeverityScore:     severity,
		Matches:           matches,
		ImageDescriptions: descriptions,
		Now:               now,
	}
	judgment := u.scorer.Score(ctx, evidence)
	result := scoring.Assess(claim, evidence, judgment)
	u.annotate(ctx, claim, result)
	if err := sm.advance(ctx, model.StateScored); err != nil {
		return nil, err
	}

	fp.StoredAt = now
	if err := tx.CreateFingerprint(ctx, fp); err != nil {
		return nil, err
	}
	if err := tx.CreateAnalysis(ctx, result); err != nil {
		return nil, err
	}
	if err := tx.MarkClaimProcessed(ctx, claim.ID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	claim.Processed = true
	claim.ProcessedAt = &now
	if err := sm.advance(ctx, model.StatePersisted); err != nil {
		return nil, err
	}

	return result, nil
}

func validate(input *model.ClaimInput, images []model.ImagePayload) error {
	err := input.Validate()
	if err == nil {
		err = model.ValidateImages(images)
	}
	if err == nil {
		return nil
	}

	var fe *model.FieldError
	if errors.As(err, &fe) {
		return goerr.Wrap(err, "invalid claim submission",
			goerr.V("field", fe.Field),
			goerr.V("reason", fe.Message),
		)
	}
	return goerr.Wrap(err, "invalid claim submission")
}

// failed moves the invocation to the failed state and hides the cause from the caller
func (u *UseCase) failed(ctx context.Context, sm *stateMachine, claim *model.Claim, started time.Time, cause error) error {
	from := sm.fail()
	logging.From(ctx).Error("claim processing failed", "error", cause, "state", from)
	logging.Audit(ctx).Error("claim failed",
		"reference_id", claim.ReferenceID,
		"organization", claim.Submitter.OrganizationName(),
		"state", from,
		"duration", u.now().Sub(started),
	)
	return goerr.Wrap(ErrProcessing, "claim analysis aborted",
		goerr.V("reference_id", claim.ReferenceID),
		goerr.V("state", from),
	)
}

// archive copies images to the blob store. Failures only warn; the
// fingerprint store never depends on it.
func (u *UseCase) archive(ctx context.Context, claim *model.Claim, images []model.ImagePayload) {
	if u.images == nil {
		return
	}
	for i := range images {
		key := fmt.Sprintf("claims/%s/%d%s", claim.ID, i, images[i].Extension())
		if err := u.images.PutObject(ctx, key, images[i].ContentType, images[i].Data); err != nil {
			logging.From(ctx).Warn("failed to archive image", "error", err, "key", key)
		}
	}
}

// describe asks the vision model for a description of every image. Failed
// descriptions are left out of the evidence.
func (u *UseCase) describe(ctx context.Context, images []model.ImagePayload) []string {
	if u.describer == nil || len(images) == 0 {
		return nil
	}

	descriptions := make([]string, len(images))
	var eg errgroup.Group
	eg.SetLimit(maxParallelDescribe)
	for i := range images {
		eg.Go(func() error {
			d, err := u.describer.DescribeImage(ctx, images[i].Data, images[i].ContentType)
			if err != nil {
				logging.From(ctx).Warn("failed to describe image", "error", err, "index", i)
				return nil
			}
			descriptions[i] = d
			return nil
		})
	}
	_ = eg.Wait()

	var out []string
	for _, d := range descriptions {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// annotate appends triage policy factors. A policy error is logged and the
// analysis is kept as computed.
func (u *UseCase) annotate(ctx context.Context, claim *model.Claim, result *model.FraudAnalysisResult) {
	if u.policy == nil {
		return
	}
	factors, err := u.policy.RiskFactors(ctx, claim, result)
	if err != nil {
		logging.From(ctx).Warn("triage policy failed", "error", err)
		return
	}
	result.RiskFactors = append(result.RiskFactors, factors...)
}
