package interfaces

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// Embedder turns claim content into fixed-length vectors
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error)
	ModelVersion() string
}

// ImageDescriber produces a textual description of a damage photo
type ImageDescriber interface {
	DescribeImage(ctx context.Context, data []byte, contentType string) (string, error)
}

// ImageStore archives masked originals outside of the fingerprint store
type ImageStore interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
}

// TriagePolicy adds annotations to a finished analysis
type TriagePolicy interface {
	RiskFactors(ctx context.Context, claim *model.Claim, result *model.FraudAnalysisResult) ([]string, error)
}

// Reasoner judges fraud risk from an evidence bundle
type Reasoner interface {
	Reason(ctx context.Context, evidence *model.Evidence) (*model.Judgment, error)
}
