package interfaces

import (
	"context"
	"time"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// CorpusReader reads the historical fingerprint corpus
type CorpusReader interface {
	// ListHistoricalIncidents returns stored fingerprints joined with their claims.
	// An empty incidentType returns the entire corpus.
	ListHistoricalIncidents(ctx context.Context, incidentType model.IncidentType) ([]*model.HistoricalIncident, error)
}

// Tx is a unit of work. Either every write made through it becomes visible
// on Commit, or none does.
type Tx interface {
	CorpusReader

	CreateClaim(ctx context.Context, claim *model.Claim) error
	CreateFingerprint(ctx context.Context, fp *model.IncidentFingerprint) error
	CreateAnalysis(ctx context.Context, result *model.FraudAnalysisResult) error
	MarkClaimProcessed(ctx context.Context, id model.ClaimID, processedAt time.Time) error

	Commit(ctx context.Context) error
	// Rollback discards all writes. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Repository defines the interface for claim data persistence
type Repository interface {
	// Begin starts a unit of work
	Begin(ctx context.Context) (Tx, error)

	// GetClaim retrieves a claim by public reference id
	GetClaim(ctx context.Context, ref model.ClaimReferenceID) (*model.Claim, error)

	// ListClaims retrieves claims, newest first
	ListClaims(ctx context.Context, offset, limit int) ([]*model.Claim, error)

	// GetAnalysis retrieves the analysis result of a claim
	GetAnalysis(ctx context.Context, id model.ClaimID) (*model.FraudAnalysisResult, error)

	// UpdateReview stores reviewer annotations of an analysis
	UpdateReview(ctx context.Context, result *model.FraudAnalysisResult) error

	Stats(ctx context.Context) (*model.Stats, error)

	Close() error
}
