package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionClaims       = "claims"
	collectionFingerprints = "incident_fingerprints"
	collectionAnalyses     = "fraud_analysis_results"
)

// Firestore is a Repository backed by Cloud Firestore. Claims and analyses
// are keyed by claim ID, fingerprints by their own ID.
type Firestore struct {
	client *firestore.Client
}

var _ interfaces.Repository = (*Firestore)(nil)

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project id is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

func (r *Firestore) Begin(ctx context.Context) (interfaces.Tx, error) {
	return &firestoreTx{
		client: r.client,
		claims: make(map[model.ClaimID]*model.Claim),
	}, nil
}

func (r *Firestore) GetClaim(ctx context.Context, ref model.ClaimReferenceID) (*model.Claim, error) {
	iter := r.client.Collection(collectionClaims).
		Where("reference_id", "==", string(ref)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, goerr.Wrap(model.ErrClaimNotFound, "no claim with reference id", goerr.V("reference_id", ref))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query claim", goerr.V("reference_id", ref))
	}

	var claim model.Claim
	if err := doc.DataTo(&claim); err != nil {
		return nil, goerr.Wrap(err, "failed to decode claim", goerr.V("reference_id", ref))
	}
	return &claim, nil
}

func (r *Firestore) ListClaims(ctx context.Context, offset, limit int) ([]*model.Claim, error) {
	iter := r.client.Collection(collectionClaims).
		OrderBy("submitted_at", firestore.Desc).
		Offset(offset).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var claims []*model.Claim
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list claims")
		}

		var claim model.Claim
		if err := doc.DataTo(&claim); err != nil {
			return nil, goerr.Wrap(err, "failed to decode claim", goerr.V("doc_id", doc.Ref.ID))
		}
		claims = append(claims, &claim)
	}
	return claims, nil
}

func (r *Firestore) GetAnalysis(ctx context.Context, id model.ClaimID) (*model.FraudAnalysisResult, error) {
	doc, err := r.client.Collection(collectionAnalyses).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrAnalysisNotFound, "no analysis for claim", goerr.V("claim_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get analysis", goerr.V("claim_id", id))
	}

	var result model.FraudAnalysisResult
	if err := doc.DataTo(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode analysis", goerr.V("claim_id", id))
	}
	return &result, nil
}

func (r *Firestore) UpdateReview(ctx context.Context, result *model.FraudAnalysisResult) error {
	_, err := r.client.Collection(collectionAnalyses).Doc(string(result.ClaimID)).Update(ctx, []firestore.Update{
		{Path: "analyst_notes", Value: result.AnalystNotes},
		{Path: "reviewed", Value: result.Reviewed},
		{Path: "updated_at", Value: result.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrAnalysisNotFound, "no analysis to review", goerr.V("claim_id", result.ClaimID))
		}
		return goerr.Wrap(err, "failed to update review", goerr.V("claim_id", result.ClaimID))
	}
	return nil
}

func (r *Firestore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{ByRiskLevel: make(map[model.RiskLevel]int64)}

	claims := r.client.Collection(collectionClaims).Select("processed").Documents(ctx)
	defer claims.Stop()
	for {
		doc, err := claims.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to count claims")
		}
		stats.Claims++
		if processed, ok := doc.Data()["processed"].(bool); ok && processed {
			stats.Processed++
		}
	}

	fps, err := r.client.Collection(collectionFingerprints).Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count fingerprints")
	}
	stats.Fingerprints = int64(len(fps))

	analyses := r.client.Collection(collectionAnalyses).Select("risk_level", "reviewed").Documents(ctx)
	defer analyses.Stop()
	for {
		doc, err := analyses.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to count analyses")
		}
		data := doc.Data()
		if level, ok := data["risk_level"].(string); ok {
			stats.ByRiskLevel[model.RiskLevel(level)]++
		}
		if reviewed, ok := data["reviewed"].(bool); ok && reviewed {
			stats.Reviewed++
		}
	}
	return stats, nil
}

// firestoreTx buffers writes and applies them in a single Firestore
// transaction on Commit. Reads go straight to the store.
type firestoreTx struct {
	client *firestore.Client

	claimOrder   []model.ClaimID
	claims       map[model.ClaimID]*model.Claim
	fingerprints []*model.IncidentFingerprint
	analyses     []*model.FraudAnalysisResult
	processed    map[model.ClaimID]time.Time

	done bool
}

func (x *firestoreTx) CreateClaim(ctx context.Context, claim *model.Claim) error {
	if _, ok := x.claims[claim.ID]; ok {
		return goerr.New("claim already staged", goerr.V("claim_id", claim.ID))
	}
	c := *claim
	x.claims[claim.ID] = &c
	x.claimOrder = append(x.claimOrder, claim.ID)
	return nil
}

func (x *firestoreTx) CreateFingerprint(ctx context.Context, fp *model.IncidentFingerprint) error {
	x.fingerprints = append(x.fingerprints, fp)
	return nil
}

func (x *firestoreTx) CreateAnalysis(ctx context.Context, result *model.FraudAnalysisResult) error {
	x.analyses = append(x.analyses, result)
	return nil
}

func (x *firestoreTx) MarkClaimProcessed(ctx context.Context, id model.ClaimID, processedAt time.Time) error {
	if c, ok := x.claims[id]; ok {
		c.Processed = true
		c.ProcessedAt = &processedAt
		return nil
	}
	if x.processed == nil {
		x.processed = make(map[model.ClaimID]time.Time)
	}
	x.processed[id] = processedAt
	return nil
}

func (x *firestoreTx) ListHistoricalIncidents(ctx context.Context, incidentType model.IncidentType) ([]*model.HistoricalIncident, error) {
	query := x.client.Collection(collectionFingerprints).Query
	if incidentType != "" {
		query = query.Where("incident_type_code", "==", string(incidentType))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var fps []*model.IncidentFingerprint
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read fingerprints")
		}
		var fp model.IncidentFingerprint
		if err := doc.DataTo(&fp); err != nil {
			logging.From(ctx).Warn("skip historical incident",
				"fingerprint_id", doc.Ref.ID,
				"error", err,
			)
			continue
		}
		fps = append(fps, &fp)
	}
	if len(fps) == 0 {
		return nil, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(fps))
	for _, fp := range fps {
		id := string(fp.ClaimID)
		if id == "" {
			id = "-"
		}
		refs = append(refs, x.client.Collection(collectionClaims).Doc(id))
	}
	snaps, err := x.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read claims of fingerprints")
	}

	incidents := make([]*model.HistoricalIncident, 0, len(fps))
	for i, fp := range fps {
		inc := &model.HistoricalIncident{Fingerprint: fp}
		if snaps[i].Exists() {
			var c model.Claim
			if err := snaps[i].DataTo(&c); err != nil {
				logging.From(ctx).Warn("skip historical incident",
					"fingerprint_id", fp.ID,
					"claim_id", fp.ClaimID,
					"error", err,
				)
				continue
			}
			inc.ReferenceID = c.ReferenceID
			inc.Organization = c.Submitter.OrganizationName()
			inc.LocationZone = c.LocationZone
			inc.IncidentType = c.IncidentType
			inc.IncidentDate = c.IncidentDate
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func (x *firestoreTx) Commit(ctx context.Context) error {
	if x.done {
		return goerr.New("transaction already finished")
	}
	x.done = true

	err := x.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range x.claimOrder {
			if err := tx.Create(x.client.Collection(collectionClaims).Doc(string(id)), x.claims[id]); err != nil {
				return goerr.Wrap(err, "failed to create claim", goerr.V("claim_id", id))
			}
		}
		for _, fp := range x.fingerprints {
			if err := tx.Create(x.client.Collection(collectionFingerprints).Doc(string(fp.ID)), fp); err != nil {
				return goerr.Wrap(err, "failed to create fingerprint", goerr.V("fingerprint_id", fp.ID))
			}
		}
		for _, a := range x.analyses {
			if err := tx.Create(x.client.Collection(collectionAnalyses).Doc(string(a.ClaimID)), a); err != nil {
				return goerr.Wrap(err, "failed to create analysis", goerr.V("claim_id", a.ClaimID))
			}
		}
		for id, at := range x.processed {
			if err := tx.Update(x.client.Collection(collectionClaims).Doc(string(id)), []firestore.Update{
				{Path: "processed", Value: true},
				{Path: "processed_at", Value: at},
			}); err != nil {
				return goerr.Wrap(err, "failed to mark claim processed", goerr.V("claim_id", id))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit firestore transaction")
	}
	return nil
}

func (x *firestoreTx) Rollback(ctx context.Context) error {
	if x.done {
		return nil
	}
	x.done = true
	x.claimOrder = nil
	x.claims = nil
	x.fingerprints = nil
	x.analyses = nil
	x.processed = nil
	return nil
}
