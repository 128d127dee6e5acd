package similarity

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Query is the fingerprint of the claim being screened
type Query struct {
	TextEmbedding       []float32
	ImageEmbedding      []float32
	SpatialFingerprint  string
	TemporalFingerprint string
	IncidentType        model.IncidentType
}

// Retriever selects which historical incidents are scored against a query
type Retriever interface {
	Candidates(ctx context.Context, corpus interfaces.CorpusReader, q *Query) ([]*model.HistoricalIncident, error)
}

// FullScan scores the entire corpus
type FullScan struct{}

func (x *FullScan) Candidates(ctx context.Context, corpus interfaces.CorpusReader, q *Query) ([]*model.HistoricalIncident, error) {
	incidents, err := corpus.ListHistoricalIncidents(ctx, "")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan corpus")
	}
	return incidents, nil
}

// ByIncidentType only scores incidents recorded with the same incident type.
// Cross-type recycling (e.g. a collision re-filed as property damage) is not found this way.
type ByIncidentType struct{}

func (x *ByIncidentType) Candidates(ctx context.Context, corpus interfaces.CorpusReader, q *Query) ([]*model.HistoricalIncident, error) {
	if q.IncidentType == "" {
		return nil, goerr.New("incident type is required for bucketed retrieval")
	}
	incidents, err := corpus.ListHistoricalIncidents(ctx, q.IncidentType)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read corpus bucket", goerr.V("incident_type", q.IncidentType))
	}
	return incidents, nil
}
