package similarity

import (
	"context"
	"sort"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type Engine struct {
	cfg       Config
	retriever Retriever
}

type Option func(*Engine)

// WithRetriever overrides the retriever named by the config
func WithRetriever(r Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		retriever: cfg.NewRetriever(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewDefault returns an engine with default weights, threshold and full scan
func NewDefault() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Score computes the four axis scores of one historical incident against the query
func (e *Engine) Score(q *Query, fp *model.IncidentFingerprint) model.Scores {
	return model.Scores{
		Text:     Cosine(q.TextEmbedding, fp.TextEmbedding),
		Image:    Cosine(q.ImageEmbedding, fp.ImageEmbedding),
		Spatial:  Hamming(q.SpatialFingerprint, fp.SpatialFingerprint),
		Temporal: Hamming(q.TemporalFingerprint, fp.TemporalFingerprint),
	}
}

// FindMatches returns the historical incidents whose overall similarity exceeds
// the threshold, best first, at most TopK. Corrupt records are skipped.
func (e *Engine) FindMatches(ctx context.Context, corpus interfaces.CorpusReader, q *Query) ([]*model.Match, error) {
	logger := logging.From(ctx)

	candidates, err := e.retriever.Candidates(ctx, corpus, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve candidates")
	}

	var matches []*model.Match
	for _, inc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "similarity scan interrupted")
		}

		if reason := malformed(inc, q); reason != "" {
			attrs := []any{"reason", reason}
			if inc != nil && inc.Fingerprint != nil {
				attrs = append(attrs, "fingerprint_id", inc.Fingerprint.ID)
			}
			logger.Warn("skip historical incident", attrs...)
			continue
		}

		scores := e.Score(q, inc.Fingerprint)
		overall := e.cfg.Weights.Overall(scores)
		if overall <= e.cfg.Threshold {
			continue
		}

		matches = append(matches, &model.Match{
			FingerprintID:    inc.Fingerprint.ID,
			ClaimReferenceID: inc.ReferenceID,
			Organization:     inc.Organization,
			LocationZone:     inc.LocationZone,
			IncidentType:     inc.IncidentType,
			IncidentDate:     inc.IncidentDate,
			Scores:           scores,
			Overall:          overall,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Overall != matches[j].Overall {
			return matches[i].Overall > matches[j].Overall
		}
		return matches[i].ClaimReferenceID < matches[j].ClaimReferenceID
	})

	if len(matches) > e.cfg.TopK {
		matches = matches[:e.cfg.TopK]
	}

	logger.Debug("similarity scan done",
		"candidates", len(candidates),
		"matches", len(matches),
		"threshold", e.cfg.Threshold,
	)
	return matches, nil
}

func malformed(inc *model.HistoricalIncident, q *Query) string {
	switch {
	case inc == nil || inc.Fingerprint == nil:
		return "missing fingerprint"
	case inc.ReferenceID == "":
		return "missing claim linkage"
	case len(inc.Fingerprint.TextEmbedding) == 0 || len(inc.Fingerprint.ImageEmbedding) == 0:
		return "empty embedding"
	case len(inc.Fingerprint.TextEmbedding) != len(q.TextEmbedding):
		return "text embedding dimension mismatch"
	case len(inc.Fingerprint.ImageEmbedding) != len(q.ImageEmbedding):
		return "image embedding dimension mismatch"
	}
	return ""
}
