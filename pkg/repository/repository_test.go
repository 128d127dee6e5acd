package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/m-mizutani/gt"
)

func newTestClaim(org string, submittedAt time.Time) *model.Claim {
	incident := submittedAt.Add(-48 * time.Hour)
	return model.NewClaim(model.ClaimInput{
		IncidentType:      model.IncidentTypeCollision,
		DamageDescription: "rear bumper crushed in parking lot collision",
		LocationZone:      model.LocationZoneB,
		IncidentDate:      incident,
		TimeWindow: model.TimeWindow{
			Start: incident.Add(-time.Hour),
			End:   incident.Add(time.Hour),
		},
	}, model.Submitter{ID: "u-1", Username: "adjuster", Organization: org}, 1, submittedAt)
}

func newTestFingerprint(claim *model.Claim, now time.Time) *model.IncidentFingerprint {
	emb := make([]float32, 8)
	for i := range emb {
		emb[i] = float32(i+1) / 10
	}
	return &model.IncidentFingerprint{
		ID:                    model.NewFingerprintID(),
		ClaimID:               claim.ID,
		ClaimReferenceID:      claim.ReferenceID,
		ImageEmbedding:        emb,
		TextEmbedding:         emb,
		SpatialFingerprint:    "0a0a5a618c54c856",
		TemporalFingerprint:   "c7a6f55532980973",
		IncidentTypeCode:      claim.IncidentType,
		SeverityScore:         0.42,
		EmbeddingModelVersion: "test-model",
		StoredAt:              now,
	}
}

func newTestAnalysis(claim *model.Claim, fp *model.IncidentFingerprint, now time.Time) *model.FraudAnalysisResult {
	matched := fp.ID
	days := 12
	return &model.FraudAnalysisResult{
		ID:                   model.NewAnalysisID(),
		ClaimID:              claim.ID,
		ClaimReferenceID:     claim.ReferenceID,
		MatchedFingerprintID: &matched,
		RiskScore:            0.81,
		RiskLevel:            model.RiskLevelCritical,
		Recommendation:       model.RecommendationInvestigate,
		Confidence:           0.9,
		TopScores:            &model.Scores{Text: 0.9, Image: 0.8, Spatial: 1, Temporal: 0.5},
		DaysSinceMatch:       &days,
		MatchCount:           1,
		Matches: []*model.Match{
			{
				FingerprintID:    fp.ID,
				ClaimReferenceID: claim.ReferenceID,
				Organization:     "Other Insurance",
				Overall:          0.81,
			},
		},
		RiskFactors:     []string{"High text similarity (90.0%) with claim " + string(claim.ReferenceID)},
		RedFlags:        []string{"duplicate photos"},
		Recommendations: []string{"request original images"},
		Explanation:     "CRITICAL RISK",
		ScoredBy:        model.ScoredByGemini,
		AnalyzedAt:      now,
		UpdatedAt:       now,
	}
}

// persist writes one complete claim through a committed unit of work
func persist(t *testing.T, repo interfaces.Repository, claim *model.Claim, now time.Time) (*model.IncidentFingerprint, *model.FraudAnalysisResult) {
	t.Helper()
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	gt.NoError(t, err)

	fp := newTestFingerprint(claim, now)
	analysis := newTestAnalysis(claim, fp, now)

	gt.NoError(t, tx.CreateClaim(ctx, claim))
	gt.NoError(t, tx.CreateFingerprint(ctx, fp))
	gt.NoError(t, tx.CreateAnalysis(ctx, analysis))
	gt.NoError(t, tx.MarkClaimProcessed(ctx, claim.ID, now))
	gt.NoError(t, tx.Commit(ctx))
	gt.NoError(t, tx.Rollback(ctx))

	return fp, analysis
}

// testRepository checks the behavior every backend shares. The store may
// already hold records of other runs.
func testRepository(t *testing.T, repo interfaces.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("committed claim is readable", func(t *testing.T) {
		claim := newTestClaim("Acme Mutual", now)
		fp, analysis := persist(t, repo, claim, now)

		got, err := repo.GetClaim(ctx, claim.ReferenceID)
		gt.NoError(t, err)
		gt.Equal(t, got.ID, claim.ID)
		gt.Equal(t, got.Submitter.Organization, "Acme Mutual")
		gt.Equal(t, got.IncidentType, model.IncidentTypeCollision)
		gt.True(t, got.Processed)
		gt.V(t, got.ProcessedAt).NotNil()
		gt.True(t, got.TimeWindow.End.After(got.TimeWindow.Start))

		result, err := repo.GetAnalysis(ctx, claim.ID)
		gt.NoError(t, err)
		gt.Equal(t, result.ID, analysis.ID)
		gt.Equal(t, result.RiskLevel, model.RiskLevelCritical)
		gt.Equal(t, result.Recommendation, model.RecommendationInvestigate)
		gt.V(t, result.MatchedFingerprintID).NotNil()
		gt.Equal(t, *result.MatchedFingerprintID, fp.ID)
		gt.V(t, result.DaysSinceMatch).NotNil()
		gt.Equal(t, *result.DaysSinceMatch, 12)
		gt.A(t, result.Matches).Length(1)
		gt.Equal(t, result.Matches[0].Organization, "Other Insurance")
		gt.A(t, result.RiskFactors).Length(1)
		gt.Equal(t, result.ScoredBy, model.ScoredByGemini)
	})

	t.Run("fingerprint joins its claim in the corpus", func(t *testing.T) {
		claim := newTestClaim("Corpus Co", now)
		fp, _ := persist(t, repo, claim, now)

		tx, err := repo.Begin(ctx)
		gt.NoError(t, err)
		defer func() { gt.NoError(t, tx.Rollback(ctx)) }()

		incidents, err := tx.ListHistoricalIncidents(ctx, model.IncidentTypeCollision)
		gt.NoError(t, err)

		var found *model.HistoricalIncident
		for _, inc := range incidents {
			if inc.Fingerprint.ID == fp.ID {
				found = inc
			}
			gt.Equal(t, inc.Fingerprint.IncidentTypeCode, model.IncidentTypeCollision)
		}
		gt.V(t, found).NotNil()
		gt.Equal(t, found.ReferenceID, claim.ReferenceID)
		gt.Equal(t, found.Organization, "Corpus Co")
		gt.Equal(t, found.LocationZone, model.LocationZoneB)
		gt.A(t, found.Fingerprint.TextEmbedding).Length(8)
		gt.Equal(t, found.Fingerprint.SpatialFingerprint, "0a0a5a618c54c856")
	})

	t.Run("rolled back claim is not visible", func(t *testing.T) {
		claim := newTestClaim("Ghost Insurance", now)

		tx, err := repo.Begin(ctx)
		gt.NoError(t, err)
		gt.NoError(t, tx.CreateClaim(ctx, claim))
		gt.NoError(t, tx.CreateFingerprint(ctx, newTestFingerprint(claim, now)))
		gt.NoError(t, tx.Rollback(ctx))

		_, err = repo.GetClaim(ctx, claim.ReferenceID)
		gt.True(t, errors.Is(err, model.ErrClaimNotFound))

		_, err = repo.GetAnalysis(ctx, claim.ID)
		gt.True(t, errors.Is(err, model.ErrAnalysisNotFound))
	})

	t.Run("review updates annotations only", func(t *testing.T) {
		claim := newTestClaim("Review Ltd", now)
		_, analysis := persist(t, repo, claim, now)

		analysis.Review("confirmed duplicate with partner", now.Add(time.Minute))
		gt.NoError(t, repo.UpdateReview(ctx, analysis))

		got, err := repo.GetAnalysis(ctx, claim.ID)
		gt.NoError(t, err)
		gt.True(t, got.Reviewed)
		gt.Equal(t, got.AnalystNotes, "confirmed duplicate with partner")
		gt.Equal(t, got.RiskScore, 0.81)
		gt.Equal(t, got.RiskLevel, model.RiskLevelCritical)
	})

	t.Run("list returns committed claims", func(t *testing.T) {
		claim := newTestClaim("List Corp", now.Add(time.Hour))
		persist(t, repo, claim, now)

		claims, err := repo.ListClaims(ctx, 0, 1000)
		gt.NoError(t, err)

		found := false
		for _, c := range claims {
			if c.ID == claim.ID {
				found = true
			}
		}
		gt.True(t, found)
	})

	t.Run("stats count stored records", func(t *testing.T) {
		stats, err := repo.Stats(ctx)
		gt.NoError(t, err)
		gt.Number(t, stats.Claims).GreaterOrEqual(4)
		gt.Number(t, stats.Processed).GreaterOrEqual(4)
		gt.Number(t, stats.Fingerprints).GreaterOrEqual(4)
		gt.Number(t, stats.Reviewed).GreaterOrEqual(1)
		gt.Number(t, stats.ByRiskLevel[model.RiskLevelCritical]).GreaterOrEqual(4)
	})
}
