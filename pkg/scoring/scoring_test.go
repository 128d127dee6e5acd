package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/scoring"
	"github.com/m-mizutani/gt"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func closeTo(t *testing.T, got, want float64) {
	t.Helper()
	gt.True(t, math.Abs(got-want) < 1e-9).Describe(fmt.Sprintf("got %f, want %f", got, want))
}

func newClaim(desc string) *model.Claim {
	return &model.Claim{
		ID:                "claim-1",
		ReferenceID:       "CLM-abcdef12",
		IncidentType:      model.IncidentTypeCollision,
		LocationZone:      model.LocationZoneA,
		DamageDescription: desc,
	}
}

func newMatch(ref, org string, overall, temporal, spatial float64) *model.Match {
	return &model.Match{
		FingerprintID:    model.FingerprintID("fp-" + ref),
		ClaimReferenceID: model.ClaimReferenceID(ref),
		Organization:     org,
		IncidentDate:     now.AddDate(0, 0, -30),
		Scores: model.Scores{
			Text:     overall,
			Image:    overall,
			Spatial:  spatial,
			Temporal: temporal,
		},
		Overall: overall,
	}
}

const mediumDescription = "Rear bumper dented while parked in the supermarket lot, tail light cracked as well."

func TestHeuristicNoMatches(t *testing.T) {
	j := scoring.Heuristic(&model.Evidence{Claim: newClaim(mediumDescription)})
	gt.Equal(t, j.RiskLevel, model.RiskLevelLow)
	gt.Equal(t, j.Score, 0.1)
	gt.Equal(t, j.Confidence, 0.7)
	gt.Equal(t, j.RedFlags, []string{"No similar historical incidents found"})
	gt.A(t, j.Recommendations).Length(3)
	gt.Equal(t, j.Source, model.ScoredByHeuristic)
	gt.S(t, j.Reasoning).Contains("First-time pattern")

	gt.Equal(t, scoring.Recommend(j.RiskLevel, j.Score), model.RecommendationProceed)
}

func TestHeuristicPatterns(t *testing.T) {
	testCases := map[string]struct {
		desc    string
		matches []*model.Match
		score   float64
		level   model.RiskLevel
	}{
		"timing and location": {
			desc:    mediumDescription,
			matches: []*model.Match{newMatch("CLM-1", "A", 0.9, 0.9, 0.9)},
			score:   0.6,
			level:   model.RiskLevelHigh,
		},
		"timing only": {
			desc:    mediumDescription,
			matches: []*model.Match{newMatch("CLM-1", "A", 0.9, 0.9, 0.1)},
			score:   0.3,
			level:   model.RiskLevelMedium,
		},
		"short description only": {
			desc:    "dent on door",
			matches: []*model.Match{newMatch("CLM-1", "A", 0.4, 0.1, 0.1)},
			score:   0.1,
			level:   model.RiskLevelLow,
		},
		"long description only": {
			desc:    strings.Repeat("x", 2001),
			matches: []*model.Match{newMatch("CLM-1", "A", 0.4, 0.1, 0.1)},
			score:   0.05,
			level:   model.RiskLevelLow,
		},
		"everything": {
			desc: "dent on door",
			matches: []*model.Match{
				newMatch("CLM-1", "A", 0.9, 0.9, 0.9),
				newMatch("CLM-2", "A", 0.8, 0.1, 0.1),
				newMatch("CLM-3", "A", 0.8, 0.1, 0.1),
				newMatch("CLM-4", "A", 0.8, 0.1, 0.1),
				newMatch("CLM-5", "A", 0.8, 0.1, 0.1),
				newMatch("CLM-6", "A", 0.8, 0.1, 0.1),
			},
			score: 0.9,
			level: model.RiskLevelCritical,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			j := scoring.Heuristic(&model.Evidence{Claim: newClaim(tc.desc), Matches: tc.matches})
			closeTo(t, j.Score, tc.score)
			gt.Equal(t, j.RiskLevel, tc.level)
			gt.Equal(t, j.Confidence, 0.6)
			gt.A(t, j.RedFlags).Longer(0)
		})
	}
}

func TestHeuristicDescriptionLengthInCharacters(t *testing.T) {
	timing := []*model.Match{newMatch("CLM-1", "A", 0.9, 0.9, 0.1)}

	t.Run("short greek description is flagged", func(t *testing.T) {
		// 30 characters, 55 bytes
		desc := strings.Repeat("ζημιά ", 5)
		j := scoring.Heuristic(&model.Evidence{Claim: newClaim(desc), Matches: timing})
		closeTo(t, j.Score, 0.4)
		gt.Equal(t, j.RiskLevel, model.RiskLevelMedium)
		gt.A(t, j.RedFlags).Has("Insufficient damage description")
	})

	t.Run("long kanji description is not flagged as detailed", func(t *testing.T) {
		// 1000 characters, 3000 bytes
		desc := strings.Repeat("損", 1000)
		j := scoring.Heuristic(&model.Evidence{Claim: newClaim(desc), Matches: timing})
		closeTo(t, j.Score, 0.3)
		gt.A(t, j.RedFlags).NotHas("Unusually detailed description")
		gt.A(t, j.RedFlags).NotHas("Insufficient damage description")
	})
}

func TestTier(t *testing.T) {
	gt.Equal(t, scoring.Tier(0.0), model.RiskLevelLow)
	gt.Equal(t, scoring.Tier(0.29), model.RiskLevelLow)
	gt.Equal(t, scoring.Tier(0.3), model.RiskLevelMedium)
	gt.Equal(t, scoring.Tier(0.1+0.2), model.RiskLevelMedium)
	gt.Equal(t, scoring.Tier(0.5), model.RiskLevelHigh)
	gt.Equal(t, scoring.Tier(0.75), model.RiskLevelCritical)
	gt.Equal(t, scoring.Tier(1.0), model.RiskLevelCritical)
}

func TestRecommend(t *testing.T) {
	gt.Equal(t, scoring.Recommend(model.RiskLevelCritical, 0.1), model.RecommendationInvestigate)
	gt.Equal(t, scoring.Recommend(model.RiskLevelHigh, 0.1), model.RecommendationInvestigate)
	gt.Equal(t, scoring.Recommend(model.RiskLevelMedium, 0.0), model.RecommendationHold)
	gt.Equal(t, scoring.Recommend(model.RiskLevelLow, 0.51), model.RecommendationHold)
	gt.Equal(t, scoring.Recommend(model.RiskLevelLow, 0.5), model.RecommendationProceed)
	gt.Equal(t, scoring.Recommend(model.RiskLevelLow, 0.1), model.RecommendationProceed)
}

func TestExplain(t *testing.T) {
	t.Run("low without matches", func(t *testing.T) {
		s := scoring.Explain(0.1, model.RiskLevelLow, nil)
		gt.S(t, s).Contains("No similar historical incidents found across any insurance company")
	})

	t.Run("single organization is named", func(t *testing.T) {
		s := scoring.Explain(0.4, model.RiskLevelMedium, []*model.Match{
			newMatch("CLM-1", "Acme Mutual", 0.8, 0.1, 0.1),
			newMatch("CLM-2", "Acme Mutual", 0.7, 0.1, 0.1),
		})
		gt.S(t, s).Contains("medium fraud risk (40%)")
		gt.S(t, s).Contains("Found 2 similar historical incident(s)")
		gt.S(t, s).Contains("Similar claim(s) found at Acme Mutual.")
		gt.S(t, s).NotContains("WARNING")
	})

	t.Run("cross organization warning at every tier", func(t *testing.T) {
		matches := []*model.Match{
			newMatch("CLM-1", "Acme Mutual", 0.8, 0.1, 0.1),
			newMatch("CLM-2", "Beacon Insurance", 0.7, 0.1, 0.1),
		}
		for _, level := range model.RiskLevels {
			s := scoring.Explain(0.8, level, matches)
			gt.S(t, s).Contains("WARNING: Similar claims detected across 2 different insurance companies (Acme Mutual, Beacon Insurance)")
		}
	})

	t.Run("critical", func(t *testing.T) {
		s := scoring.Explain(0.92, model.RiskLevelCritical, []*model.Match{newMatch("CLM-1", "Acme", 0.9, 0.9, 0.9)})
		gt.S(t, s).Contains("CRITICAL fraud risk (92%)")
		gt.S(t, s).Contains("potential fraud referral")
	})
}

func TestRiskFactors(t *testing.T) {
	t.Run("no matches", func(t *testing.T) {
		gt.Equal(t, scoring.RiskFactors(nil, 0.5), []string{"No similar historical incidents found"})
	})

	t.Run("full set", func(t *testing.T) {
		factors := scoring.RiskFactors([]*model.Match{
			newMatch("CLM-1", "Acme", 0.93, 0.9, 0.95),
			newMatch("CLM-2", "Beacon", 0.7, 0.1, 0.1),
			newMatch("CLM-3", "Acme", 0.6, 0.1, 0.1),
		}, 0.1)

		gt.A(t, factors).Length(6)
		gt.Equal(t, factors[0], "High similarity (93%) to claim at Acme - Image: 93%")
		gt.Equal(t, factors[1], "Similar incident timing detected (match at Acme)")
		gt.Equal(t, factors[2], "Similar location detected (match at Acme)")
		gt.Equal(t, factors[3], "CRITICAL: Similar claims found at 2 different companies: Acme, Beacon")
		gt.Equal(t, factors[4], "Multiple (3) similar historical incidents found")
		gt.Equal(t, factors[5], "Low damage severity but high similarity pattern")
	})
}

func TestParseJudgment(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		j, err := scoring.ParseJudgment(`{"fraud_risk_level":"high","fraud_score":0.72,"reasoning":"matches at two carriers","red_flags":["cross-company"]}`)
		gt.NoError(t, err)
		gt.Equal(t, j.RiskLevel, model.RiskLevelHigh)
		gt.Equal(t, j.Score, 0.72)
		gt.Equal(t, j.Confidence, 0.8)
		gt.Equal(t, j.RedFlags, []string{"cross-company"})
		gt.Equal(t, j.Recommendations, []string{})
		gt.Equal(t, j.Source, model.ScoredByGemini)
	})

	t.Run("fenced JSON with string score", func(t *testing.T) {
		j, err := scoring.ParseJudgment("```json\n{\"fraud_risk_level\":\"LOW\",\"fraud_score\":\"0.2\",\"confidence\":0.9,\"reasoning\":\"ok\"}\n```")
		gt.NoError(t, err)
		gt.Equal(t, j.Score, 0.2)
		gt.Equal(t, j.Confidence, 0.9)
	})

	t.Run("score is clamped", func(t *testing.T) {
		j, err := scoring.ParseJudgment(`{"fraud_risk_level":"CRITICAL","fraud_score":1.7,"reasoning":"r"}`)
		gt.NoError(t, err)
		gt.Equal(t, j.Score, 1.0)
	})

	for name, text := range map[string]string{
		"missing tier":      `{"fraud_score":0.2,"reasoning":"r"}`,
		"missing score":     `{"fraud_risk_level":"LOW","reasoning":"r"}`,
		"missing reasoning": `{"fraud_risk_level":"LOW","fraud_score":0.2}`,
		"unknown tier":      `{"fraud_risk_level":"SEVERE","fraud_score":0.2,"reasoning":"r"}`,
		"non numeric score": `{"fraud_risk_level":"LOW","fraud_score":"high","reasoning":"r"}`,
		"not JSON":          `I think this claim is fine.`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := scoring.ParseJudgment(text)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, scoring.ErrMalformedJudgment))
		})
	}
}

type mockReasoner struct {
	judgment *model.Judgment
	err      error
	calls    int
}

func (x *mockReasoner) Reason(ctx context.Context, ev *model.Evidence) (*model.Judgment, error) {
	x.calls++
	return x.judgment, x.err
}

func TestScorer(t *testing.T) {
	ctx := context.Background()
	ev := &model.Evidence{
		Claim:   newClaim(mediumDescription),
		Matches: []*model.Match{newMatch("CLM-1", "Acme", 0.9, 0.9, 0.9)},
		Now:     now,
	}

	t.Run("reasoner result is used", func(t *testing.T) {
		r := &mockReasoner{judgment: &model.Judgment{
			RiskLevel:  model.RiskLevelCritical,
			Score:      0.95,
			Confidence: 0.9,
			Reasoning:  "same photos at another carrier",
			Source:     model.ScoredByGemini,
		}}
		j := scoring.New(r).Score(ctx, ev)
		gt.Equal(t, j.RiskLevel, model.RiskLevelCritical)
		gt.Equal(t, j.Source, model.ScoredByGemini)
		gt.Equal(t, r.calls, 1)
	})

	t.Run("reasoner failure falls back to heuristic", func(t *testing.T) {
		r := &mockReasoner{err: errors.New("deadline exceeded")}
		j := scoring.New(r).Score(ctx, ev)
		gt.Equal(t, j.Source, model.ScoredByHeuristic)
		gt.Equal(t, j.RiskLevel, model.RiskLevelHigh)
	})

	t.Run("nil reasoner", func(t *testing.T) {
		j := scoring.New(nil).Score(ctx, ev)
		gt.Equal(t, j.Source, model.ScoredByHeuristic)
	})
}

func TestAssess(t *testing.T) {
	claim := newClaim(mediumDescription)
	ev := &model.Evidence{
		Claim:         claim,
		SeverityScore: 0.5,
		Matches:       []*model.Match{newMatch("CLM-1", "Acme", 0.9, 0.9, 0.9)},
		Now:           now,
	}
	j := scoring.Heuristic(ev)
	result := scoring.Assess(claim, ev, j)

	gt.Equal(t, result.ClaimID, claim.ID)
	gt.Equal(t, result.ClaimReferenceID, claim.ReferenceID)
	gt.Equal(t, result.RiskLevel, model.RiskLevelHigh)
	gt.Equal(t, result.Recommendation, model.RecommendationInvestigate)
	gt.Equal(t, result.MatchCount, 1)
	gt.V(t, result.MatchedFingerprintID).NotNil()
	gt.Equal(t, *result.MatchedFingerprintID, model.FingerprintID("fp-CLM-1"))
	gt.V(t, result.DaysSinceMatch).NotNil()
	gt.Equal(t, *result.DaysSinceMatch, 30)
	gt.Equal(t, result.ScoredBy, model.ScoredByHeuristic)
	gt.S(t, result.Explanation).Contains("Similar claim(s) found at Acme.")
	gt.False(t, result.Reviewed)

	t.Run("no matches", func(t *testing.T) {
		ev := &model.Evidence{Claim: claim, Now: now}
		result := scoring.Assess(claim, ev, scoring.Heuristic(ev))
		gt.Equal(t, result.RiskLevel, model.RiskLevelLow)
		gt.Equal(t, result.Recommendation, model.RecommendationProceed)
		gt.True(t, result.MatchedFingerprintID == nil)
		gt.A(t, result.Matches).Length(0)
	})
}
