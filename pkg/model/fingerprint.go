package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type FingerprintID string

func NewFingerprintID() FingerprintID {
	return FingerprintID(uuid.New().String())
}

// IncidentFingerprint is the anonymized, immutable record kept for every analyzed claim.
// It carries no raw imagery and no free-form identifiers.
type IncidentFingerprint struct {
	ID               FingerprintID    `json:"id" firestore:"id"`
	ClaimID          ClaimID          `json:"claim_id" firestore:"claim_id"`
	ClaimReferenceID ClaimReferenceID `json:"claim_reference_id" firestore:"claim_reference_id"`

	ImageEmbedding firestore.Vector32 `json:"image_embedding" firestore:"image_embedding"`
	TextEmbedding  firestore.Vector32 `json:"text_embedding" firestore:"text_embedding"`

	SpatialFingerprint  string       `json:"spatial_fingerprint" firestore:"spatial_fingerprint"`
	TemporalFingerprint string       `json:"temporal_fingerprint" firestore:"temporal_fingerprint"`
	IncidentTypeCode    IncidentType `json:"incident_type_code" firestore:"incident_type_code"`
	SeverityScore       float64      `json:"severity_score" firestore:"severity_score"`

	EmbeddingModelVersion string    `json:"embedding_model_version" firestore:"embedding_model_version"`
	StoredAt              time.Time `json:"stored_at" firestore:"stored_at"`
}

// HistoricalIncident is a stored fingerprint joined with what matching needs to know
// about the claim that produced it.
type HistoricalIncident struct {
	Fingerprint  *IncidentFingerprint
	ReferenceID  ClaimReferenceID
	Organization string
	LocationZone LocationZone
	IncidentType IncidentType
	IncidentDate time.Time
}

// Scores holds the four per-axis similarities, each in [0,1]
type Scores struct {
	Text     float64 `json:"text"`
	Image    float64 `json:"image"`
	Spatial  float64 `json:"spatial"`
	Temporal float64 `json:"temporal"`
}

type Match struct {
	FingerprintID    FingerprintID    `json:"fingerprint_id"`
	ClaimReferenceID ClaimReferenceID `json:"claim_reference_id"`
	Organization     string           `json:"organization"`
	LocationZone     LocationZone     `json:"location_zone"`
	IncidentType     IncidentType     `json:"incident_type"`
	IncidentDate     time.Time        `json:"incident_date"`
	Scores           Scores           `json:"scores"`
	Overall          float64          `json:"overall"`
}

// DaysSince returns whole days elapsed between the matched incident and now
func (m *Match) DaysSince(now time.Time) int {
	if m.IncidentDate.IsZero() {
		return 0
	}
	return int(now.Sub(m.IncidentDate).Hours() / 24)
}

// Organizations returns the distinct submitter organizations of matches in first-seen order
func Organizations(matches []*Match) []string {
	seen := make(map[string]struct{})
	var orgs []string
	for _, m := range matches {
		org := m.Organization
		if org == "" {
			org = UnknownOrganization
		}
		if _, ok := seen[org]; ok {
			continue
		}
		seen[org] = struct{}{}
		orgs = append(orgs, org)
	}
	return orgs
}
