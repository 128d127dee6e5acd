package model

import "time"

// Evidence is everything a judge may look at when scoring a claim
type Evidence struct {
	Claim             *Claim
	SeverityScore     float64
	Matches           []*Match
	ImageDescriptions []string
	Now               time.Time
}

// TopTemporal returns the temporal similarity of the best match, 0 without matches
func (e *Evidence) TopTemporal() float64 {
	if len(e.Matches) == 0 {
		return 0
	}
	return e.Matches[0].Scores.Temporal
}

// TopSpatial returns the spatial similarity of the best match, 0 without matches
func (e *Evidence) TopSpatial() float64 {
	if len(e.Matches) == 0 {
		return 0
	}
	return e.Matches[0].Scores.Spatial
}

// Judgment is a tier and score assigned to a claim by a judge
type Judgment struct {
	RiskLevel       RiskLevel
	Score           float64
	Confidence      float64
	RedFlags        []string
	Reasoning       string
	Recommendations []string
	Source          ScoredBy
}
