// Package claim runs the claim screening pipeline and the read side used by reviewers.
package claim

import (
	"time"

	"github.com/crossinsure/crossinsure/pkg/embedding"
	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/scoring"
	"github.com/crossinsure/crossinsure/pkg/similarity"
	"github.com/m-mizutani/goerr/v2"
)

// ErrProcessing is returned for every failure after validation. The cause is
// logged, never returned.
var ErrProcessing = goerr.New("claim processing failed, try again later")

// UseCase provides claim-related operations
type UseCase struct {
	repo       interfaces.Repository
	gateway    *embedding.Gateway
	scorer     *scoring.Scorer
	similarity *similarity.Engine
	policy     interfaces.TriagePolicy
	images     interfaces.ImageStore
	describer  interfaces.ImageDescriber
	now        func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithPolicy appends triage policy annotations to every analysis
func WithPolicy(p interfaces.TriagePolicy) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

// WithImageStore archives submitted images to a blob store
func WithImageStore(s interfaces.ImageStore) Option {
	return func(uc *UseCase) {
		uc.images = s
	}
}

// WithDescriber adds per-image descriptions to the scoring evidence
func WithDescriber(d interfaces.ImageDescriber) Option {
	return func(uc *UseCase) {
		uc.describer = d
	}
}

// WithSimilarity replaces the default similarity engine
func WithSimilarity(e *similarity.Engine) Option {
	return func(uc *UseCase) {
		uc.similarity = e
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new claim UseCase instance
func New(
	repo interfaces.Repository,
	gateway *embedding.Gateway,
	scorer *scoring.Scorer,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:       repo,
		gateway:    gateway,
		scorer:     scorer,
		similarity: similarity.NewDefault(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
