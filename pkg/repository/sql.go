package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/glebarez/sqlite"
	"github.com/m-mizutani/goerr/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type claimRow struct {
	ID                string    `gorm:"primaryKey;size:36"`
	ReferenceID       string    `gorm:"uniqueIndex;size:16"`
	SubmitterID       string    `gorm:"size:64"`
	SubmitterUsername string    `gorm:"size:128"`
	Organization      string    `gorm:"index;size:256"`
	IncidentType      string    `gorm:"index;size:32"`
	LocationZone      string    `gorm:"size:16"`
	DamageDescription string    `gorm:"type:text"`
	IncidentDate      time.Time `gorm:"index"`
	WindowStart       time.Time
	WindowEnd         time.Time
	ImageCount        int
	Processed         bool `gorm:"index"`
	ProcessingError   string `gorm:"type:text"`
	SubmittedAt       time.Time `gorm:"index"`
	ProcessedAt       *time.Time
}

func (claimRow) TableName() string { return "claims" }

type fingerprintRow struct {
	ID                    string    `gorm:"primaryKey;size:36"`
	ClaimID               string    `gorm:"uniqueIndex;size:36"`
	ClaimReferenceID      string    `gorm:"size:16"`
	ImageEmbedding        []float32 `gorm:"type:text;serializer:json"`
	TextEmbedding         []float32 `gorm:"type:text;serializer:json"`
	SpatialFingerprint    string    `gorm:"size:16"`
	TemporalFingerprint   string    `gorm:"size:16"`
	IncidentTypeCode      string    `gorm:"index;size:32"`
	SeverityScore         float64
	EmbeddingModelVersion string    `gorm:"size:64"`
	StoredAt              time.Time `gorm:"index"`
}

func (fingerprintRow) TableName() string { return "incident_fingerprints" }

// fingerprintScan reads incident_fingerprints with the embedding columns left
// undecoded, so one malformed row does not fail the whole corpus read.
type fingerprintScan struct {
	ID                    string
	ClaimID               string
	ClaimReferenceID      string
	ImageEmbedding        string
	TextEmbedding         string
	SpatialFingerprint    string
	TemporalFingerprint   string
	IncidentTypeCode      string
	SeverityScore         float64
	EmbeddingModelVersion string
	StoredAt              time.Time
}

func (s *fingerprintScan) decode() (fingerprintRow, error) {
	row := fingerprintRow{
		ID:                    s.ID,
		ClaimID:               s.ClaimID,
		ClaimReferenceID:      s.ClaimReferenceID,
		SpatialFingerprint:    s.SpatialFingerprint,
		TemporalFingerprint:   s.TemporalFingerprint,
		IncidentTypeCode:      s.IncidentTypeCode,
		SeverityScore:         s.SeverityScore,
		EmbeddingModelVersion: s.EmbeddingModelVersion,
		StoredAt:              s.StoredAt,
	}
	if err := decodeEmbedding(s.ImageEmbedding, &row.ImageEmbedding); err != nil {
		return row, goerr.Wrap(err, "malformed image embedding")
	}
	if err := decodeEmbedding(s.TextEmbedding, &row.TextEmbedding); err != nil {
		return row, goerr.Wrap(err, "malformed text embedding")
	}
	return row, nil
}

func decodeEmbedding(raw string, dst *[]float32) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

type analysisRow struct {
	ID                   string  `gorm:"primaryKey;size:36"`
	ClaimID              string  `gorm:"uniqueIndex;size:36"`
	ClaimReferenceID     string  `gorm:"size:16"`
	MatchedFingerprintID *string `gorm:"size:36"`
	RiskScore            float64
	RiskLevel            string `gorm:"index;size:16"`
	Recommendation       string `gorm:"size:16"`
	Confidence           float64
	TopScores            *model.Scores  `gorm:"type:text;serializer:json"`
	DaysSinceMatch       *int
	MatchCount           int
	Matches              []*model.Match `gorm:"type:text;serializer:json"`
	RiskFactors          []string       `gorm:"type:text;serializer:json"`
	RedFlags             []string       `gorm:"type:text;serializer:json"`
	Recommendations      []string       `gorm:"type:text;serializer:json"`
	Explanation          string         `gorm:"type:text"`
	ScoredBy             string         `gorm:"size:16"`
	AnalystNotes         string         `gorm:"type:text"`
	Reviewed             bool           `gorm:"index"`
	AnalyzedAt           time.Time      `gorm:"index"`
	UpdatedAt            time.Time
}

func (analysisRow) TableName() string { return "fraud_analysis_results" }

// SQL is a relational Repository. SQLite and PostgreSQL are supported.
type SQL struct {
	db *gorm.DB
}

var _ interfaces.Repository = (*SQL)(nil)

// NewSQL opens the database named by dsn and migrates the schema.
// postgres:// and postgresql:// DSNs use PostgreSQL, anything else is a SQLite
// path (":memory:" for an in-process database).
func NewSQL(dsn string) (*SQL, error) {
	var dialector gorm.Dialector
	inMemory := false
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, goerr.New("database path is empty")
		}
		inMemory = path == ":memory:" || strings.Contains(path, "mode=memory")
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database")
	}

	if inMemory {
		// every connection of an in-memory SQLite database is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get sql.DB")
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := db.AutoMigrate(&claimRow{}, &fingerprintRow{}, &analysisRow{}); err != nil {
		return nil, goerr.Wrap(err, "failed to migrate schema")
	}

	return &SQL{db: db}, nil
}

func (r *SQL) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database")
	}
	return nil
}

func (r *SQL) Begin(ctx context.Context) (interfaces.Tx, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, goerr.Wrap(tx.Error, "failed to begin transaction")
	}
	return &sqlTx{db: tx}, nil
}

func (r *SQL) GetClaim(ctx context.Context, ref model.ClaimReferenceID) (*model.Claim, error) {
	var row claimRow
	if err := r.db.WithContext(ctx).Where("reference_id = ?", string(ref)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(model.ErrClaimNotFound, "no claim with reference id", goerr.V("reference_id", ref))
		}
		return nil, goerr.Wrap(err, "failed to get claim", goerr.V("reference_id", ref))
	}
	return row.toModel(), nil
}

func (r *SQL) ListClaims(ctx context.Context, offset, limit int) ([]*model.Claim, error) {
	var rows []claimRow
	if err := r.db.WithContext(ctx).
		Order("submitted_at desc").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list claims")
	}

	claims := make([]*model.Claim, 0, len(rows))
	for i := range rows {
		claims = append(claims, rows[i].toModel())
	}
	return claims, nil
}

func (r *SQL) GetAnalysis(ctx context.Context, id model.ClaimID) (*model.FraudAnalysisResult, error) {
	var row analysisRow
	if err := r.db.WithContext(ctx).Where("claim_id = ?", string(id)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(model.ErrAnalysisNotFound, "no analysis for claim", goerr.V("claim_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get analysis", goerr.V("claim_id", id))
	}
	return row.toModel(), nil
}

func (r *SQL) UpdateReview(ctx context.Context, result *model.FraudAnalysisResult) error {
	res := r.db.WithContext(ctx).
		Model(&analysisRow{}).
		Where("id = ?", string(result.ID)).
		Updates(map[string]any{
			"analyst_notes": result.AnalystNotes,
			"reviewed":      result.Reviewed,
			"updated_at":    result.UpdatedAt,
		})
	if res.Error != nil {
		return goerr.Wrap(res.Error, "failed to update review", goerr.V("analysis_id", result.ID))
	}
	if res.RowsAffected == 0 {
		return goerr.Wrap(model.ErrAnalysisNotFound, "no analysis to review", goerr.V("analysis_id", result.ID))
	}
	return nil
}

func (r *SQL) Stats(ctx context.Context) (*model.Stats, error) {
	db := r.db.WithContext(ctx)
	stats := &model.Stats{ByRiskLevel: make(map[model.RiskLevel]int64)}

	if err := db.Model(&claimRow{}).Count(&stats.Claims).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count claims")
	}
	if err := db.Model(&claimRow{}).Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count processed claims")
	}
	if err := db.Model(&fingerprintRow{}).Count(&stats.Fingerprints).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count fingerprints")
	}
	if err := db.Model(&analysisRow{}).Where("reviewed = ?", true).Count(&stats.Reviewed).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count reviewed analyses")
	}

	var tiers []struct {
		RiskLevel string
		Count     int64
	}
	if err := db.Model(&analysisRow{}).
		Select("risk_level, count(*) as count").
		Group("risk_level").
		Scan(&tiers).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count analyses by tier")
	}
	for _, t := range tiers {
		stats.ByRiskLevel[model.RiskLevel(t.RiskLevel)] = t.Count
	}
	return stats, nil
}

type sqlTx struct {
	db   *gorm.DB
	done bool
}

func (x *sqlTx) CreateClaim(ctx context.Context, claim *model.Claim) error {
	row := newClaimRow(claim)
	if err := x.db.WithContext(ctx).Create(row).Error; err != nil {
		return goerr.Wrap(err, "failed to insert claim", goerr.V("reference_id", claim.ReferenceID))
	}
	return nil
}

func (x *sqlTx) CreateFingerprint(ctx context.Context, fp *model.IncidentFingerprint) error {
	row := newFingerprintRow(fp)
	if err := x.db.WithContext(ctx).Create(row).Error; err != nil {
		return goerr.Wrap(err, "failed to insert fingerprint", goerr.V("claim_id", fp.ClaimID))
	}
	return nil
}

func (x *sqlTx) CreateAnalysis(ctx context.Context, result *model.FraudAnalysisResult) error {
	row := newAnalysisRow(result)
	if err := x.db.WithContext(ctx).Create(row).Error; err != nil {
		return goerr.Wrap(err, "failed to insert analysis", goerr.V("claim_id", result.ClaimID))
	}
	return nil
}

func (x *sqlTx) MarkClaimProcessed(ctx context.Context, id model.ClaimID, processedAt time.Time) error {
	res := x.db.WithContext(ctx).
		Model(&claimRow{}).
		Where("id = ?", string(id)).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return goerr.Wrap(res.Error, "failed to mark claim processed", goerr.V("claim_id", id))
	}
	if res.RowsAffected == 0 {
		return goerr.Wrap(model.ErrClaimNotFound, "no claim to mark processed", goerr.V("claim_id", id))
	}
	return nil
}

func (x *sqlTx) ListHistoricalIncidents(ctx context.Context, incidentType model.IncidentType) ([]*model.HistoricalIncident, error) {
	query := x.db.WithContext(ctx).Order("stored_at asc")
	if incidentType != "" {
		query = query.Where("incident_type_code = ?", string(incidentType))
	}

	var scans []fingerprintScan
	if err := query.Model(&fingerprintRow{}).Find(&scans).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to read fingerprints")
	}

	fps := make([]fingerprintRow, 0, len(scans))
	for i := range scans {
		fp, err := scans[i].decode()
		if err != nil {
			logging.From(ctx).Warn("skip historical incident",
				"fingerprint_id", scans[i].ID,
				"claim_id", scans[i].ClaimID,
				"error", err,
			)
			continue
		}
		fps = append(fps, fp)
	}
	if len(fps) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fps))
	for _, fp := range fps {
		ids = append(ids, fp.ClaimID)
	}

	var claims []claimRow
	if err := x.db.WithContext(ctx).Where("id IN ?", ids).Find(&claims).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to read claims of fingerprints")
	}
	byID := make(map[string]*claimRow, len(claims))
	for i := range claims {
		byID[claims[i].ID] = &claims[i]
	}

	incidents := make([]*model.HistoricalIncident, 0, len(fps))
	for i := range fps {
		inc := &model.HistoricalIncident{Fingerprint: fps[i].toModel()}
		// a fingerprint without its claim keeps an empty reference id
		if c, ok := byID[fps[i].ClaimID]; ok {
			inc.ReferenceID = model.ClaimReferenceID(c.ReferenceID)
			inc.Organization = c.Organization
			inc.LocationZone = model.LocationZone(c.LocationZone)
			inc.IncidentType = model.IncidentType(c.IncidentType)
			inc.IncidentDate = c.IncidentDate
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func (x *sqlTx) Commit(ctx context.Context) error {
	if x.done {
		return goerr.New("transaction already finished")
	}
	x.done = true
	if err := x.db.Commit().Error; err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (x *sqlTx) Rollback(ctx context.Context) error {
	if x.done {
		return nil
	}
	x.done = true
	if err := x.db.Rollback().Error; err != nil {
		return goerr.Wrap(err, "failed to rollback transaction")
	}
	return nil
}

func newClaimRow(c *model.Claim) *claimRow {
	return &claimRow{
		ID:                string(c.ID),
		ReferenceID:       string(c.ReferenceID),
		SubmitterID:       c.Submitter.ID,
		SubmitterUsername: c.Submitter.Username,
		Organization:      c.Submitter.OrganizationName(),
		IncidentType:      string(c.IncidentType),
		LocationZone:      string(c.LocationZone),
		DamageDescription: c.DamageDescription,
		IncidentDate:      c.IncidentDate,
		WindowStart:       c.TimeWindow.Start,
		WindowEnd:         c.TimeWindow.End,
		ImageCount:        c.ImageCount,
		Processed:         c.Processed,
		ProcessingError:   c.ProcessingError,
		SubmittedAt:       c.SubmittedAt,
		ProcessedAt:       c.ProcessedAt,
	}
}

func (r *claimRow) toModel() *model.Claim {
	return &model.Claim{
		ID:          model.ClaimID(r.ID),
		ReferenceID: model.ClaimReferenceID(r.ReferenceID),
		Submitter: model.Submitter{
			ID:           r.SubmitterID,
			Username:     r.SubmitterUsername,
			Organization: r.Organization,
		},
		IncidentType:      model.IncidentType(r.IncidentType),
		LocationZone:      model.LocationZone(r.LocationZone),
		DamageDescription: r.DamageDescription,
		IncidentDate:      r.IncidentDate,
		TimeWindow:        model.TimeWindow{Start: r.WindowStart, End: r.WindowEnd},
		ImageCount:        r.ImageCount,
		Processed:         r.Processed,
		ProcessingError:   r.ProcessingError,
		SubmittedAt:       r.SubmittedAt,
		ProcessedAt:       r.ProcessedAt,
	}
}

func newFingerprintRow(fp *model.IncidentFingerprint) *fingerprintRow {
	return &fingerprintRow{
		ID:                    string(fp.ID),
		ClaimID:               string(fp.ClaimID),
		ClaimReferenceID:      string(fp.ClaimReferenceID),
		ImageEmbedding:        []float32(fp.ImageEmbedding),
		TextEmbedding:         []float32(fp.TextEmbedding),
		SpatialFingerprint:    fp.SpatialFingerprint,
		TemporalFingerprint:   fp.TemporalFingerprint,
		IncidentTypeCode:      string(fp.IncidentTypeCode),
		SeverityScore:         fp.SeverityScore,
		EmbeddingModelVersion: fp.EmbeddingModelVersion,
		StoredAt:              fp.StoredAt,
	}
}

func (r *fingerprintRow) toModel() *model.IncidentFingerprint {
	return &model.IncidentFingerprint{
		ID:                    model.FingerprintID(r.ID),
		ClaimID:               model.ClaimID(r.ClaimID),
		ClaimReferenceID:      model.ClaimReferenceID(r.ClaimReferenceID),
		ImageEmbedding:        r.ImageEmbedding,
		TextEmbedding:         r.TextEmbedding,
		SpatialFingerprint:    r.SpatialFingerprint,
		TemporalFingerprint:   r.TemporalFingerprint,
		IncidentTypeCode:      model.IncidentType(r.IncidentTypeCode),
		SeverityScore:         r.SeverityScore,
		EmbeddingModelVersion: r.EmbeddingModelVersion,
		StoredAt:              r.StoredAt,
	}
}

func newAnalysisRow(a *model.FraudAnalysisResult) *analysisRow {
	row := &analysisRow{
		ID:               string(a.ID),
		ClaimID:          string(a.ClaimID),
		ClaimReferenceID: string(a.ClaimReferenceID),
		RiskScore:        a.RiskScore,
		RiskLevel:        string(a.RiskLevel),
		Recommendation:   string(a.Recommendation),
		Confidence:       a.Confidence,
		TopScores:        a.TopScores,
		DaysSinceMatch:   a.DaysSinceMatch,
		MatchCount:       a.MatchCount,
		Matches:          a.Matches,
		RiskFactors:      a.RiskFactors,
		RedFlags:         a.RedFlags,
		Recommendations:  a.Recommendations,
		Explanation:      a.Explanation,
		ScoredBy:         string(a.ScoredBy),
		AnalystNotes:     a.AnalystNotes,
		Reviewed:         a.Reviewed,
		AnalyzedAt:       a.AnalyzedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if a.MatchedFingerprintID != nil {
		id := string(*a.MatchedFingerprintID)
		row.MatchedFingerprintID = &id
	}
	return row
}

func (r *analysisRow) toModel() *model.FraudAnalysisResult {
	a := &model.FraudAnalysisResult{
		ID:               model.AnalysisID(r.ID),
		ClaimID:          model.ClaimID(r.ClaimID),
		ClaimReferenceID: model.ClaimReferenceID(r.ClaimReferenceID),
		RiskScore:        r.RiskScore,
		RiskLevel:        model.RiskLevel(r.RiskLevel),
		Recommendation:   model.Recommendation(r.Recommendation),
		Confidence:       r.Confidence,
		TopScores:        r.TopScores,
		DaysSinceMatch:   r.DaysSinceMatch,
		MatchCount:       r.MatchCount,
		Matches:          r.Matches,
		RiskFactors:      r.RiskFactors,
		RedFlags:         r.RedFlags,
		Recommendations:  r.Recommendations,
		Explanation:      r.Explanation,
		ScoredBy:         model.ScoredBy(r.ScoredBy),
		AnalystNotes:     r.AnalystNotes,
		Reviewed:         r.Reviewed,
		AnalyzedAt:       r.AnalyzedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.MatchedFingerprintID != nil {
		id := model.FingerprintID(*r.MatchedFingerprintID)
		a.MatchedFingerprintID = &id
	}
	return a
}
