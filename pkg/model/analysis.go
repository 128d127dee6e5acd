package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidRiskLevel = goerr.New("invalid risk level")
	ErrAnalysisNotFound = goerr.New("analysis not found")
)

type AnalysisID string

func NewAnalysisID() AnalysisID {
	return AnalysisID(uuid.New().String())
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

var RiskLevels = []RiskLevel{
	RiskLevelLow,
	RiskLevelMedium,
	RiskLevelHigh,
	RiskLevelCritical,
}

// ParseRiskLevel accepts a tier name in any letter case
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if err := level.Validate(); err != nil {
		return "", err
	}
	return level, nil
}

func (l RiskLevel) Validate() error {
	for _, v := range RiskLevels {
		if l == v {
			return nil
		}
	}
	return goerr.Wrap(ErrInvalidRiskLevel, "unknown tier", goerr.V("level", string(l)))
}

type Recommendation string

const (
	RecommendationProceed     Recommendation = "PROCEED"
	RecommendationHold        Recommendation = "HOLD"
	RecommendationInvestigate Recommendation = "INVESTIGATE"
)

// ScoredBy names which judge produced the tier of an analysis
type ScoredBy string

const (
	ScoredByGemini    ScoredBy = "gemini"
	ScoredByHeuristic ScoredBy = "heuristic"
)

// FraudAnalysisResult is the persisted outcome of scoring one claim.
// Computed fields never change after creation; reviewers may only annotate.
type FraudAnalysisResult struct {
	ID                   AnalysisID       `json:"id" firestore:"id"`
	ClaimID              ClaimID          `json:"claim_id" firestore:"claim_id"`
	ClaimReferenceID     ClaimReferenceID `json:"claim_reference_id" firestore:"claim_reference_id"`
	MatchedFingerprintID *FingerprintID   `json:"matched_fingerprint_id,omitempty" firestore:"matched_fingerprint_id"`

	RiskScore      float64        `json:"risk_score" firestore:"risk_score"`
	RiskLevel      RiskLevel      `json:"risk_level" firestore:"risk_level"`
	Recommendation Recommendation `json:"recommendation" firestore:"recommendation"`
	Confidence     float64        `json:"confidence" firestore:"confidence"`

	TopScores      *Scores  `json:"top_scores,omitempty" firestore:"top_scores"`
	DaysSinceMatch *int     `json:"days_since_matched_incident,omitempty" firestore:"days_since_matched_incident"`
	MatchCount     int      `json:"match_count" firestore:"match_count"`
	Matches        []*Match `json:"matches" firestore:"matches"`

	RiskFactors     []string `json:"risk_factors" firestore:"risk_factors"`
	RedFlags        []string `json:"red_flags" firestore:"red_flags"`
	Recommendations []string `json:"recommendations" firestore:"recommendations"`
	Explanation     string   `json:"explanation" firestore:"explanation"`
	ScoredBy        ScoredBy `json:"scored_by" firestore:"scored_by"`

	AnalystNotes string    `json:"analyst_notes,omitempty" firestore:"analyst_notes"`
	Reviewed     bool      `json:"reviewed" firestore:"reviewed"`
	AnalyzedAt   time.Time `json:"analyzed_at" firestore:"analyzed_at"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updated_at"`
}

// Review annotates the analysis. Scores, tier and recommendation stay as computed.
func (r *FraudAnalysisResult) Review(notes string, now time.Time) {
	r.AnalystNotes = notes
	r.Reviewed = true
	r.UpdatedAt = now
}

// AnalysisResult is what a submitter gets back from the pipeline
type AnalysisResult struct {
	*FraudAnalysisResult
	State          ProcessingState `json:"state"`
	ProcessingTime time.Duration   `json:"processing_time"`
}

// Stats summarizes the stored corpus
type Stats struct {
	Claims       int64               `json:"claims"`
	Processed    int64               `json:"processed"`
	Fingerprints int64               `json:"fingerprints"`
	Reviewed     int64               `json:"reviewed"`
	ByRiskLevel  map[RiskLevel]int64 `json:"by_risk_level"`
}
