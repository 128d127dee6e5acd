// Package policy evaluates operator supplied Rego rules that annotate a
// finished claim analysis with extra risk factors. Policies never change
// computed scores, tiers or recommendations.
package policy

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// regoPrintHook forwards Rego print() statements to the context logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

type Engine struct {
	triage *rego.PreparedEvalQuery
}

// New loads every .rego file of policyDir. Rules live in package triage.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	triage, err := loadPolicy(ctx, policyDir)
	if err != nil {
		return nil, err
	}
	return &Engine{triage: triage}, nil
}

// RiskFactors evaluates the triage policy and returns the risk_factor strings
// it emits, sorted.
func (e *Engine) RiskFactors(ctx context.Context, claim *model.Claim, result *model.FraudAnalysisResult) ([]string, error) {
	if e.triage == nil {
		return nil, nil
	}

	input := map[string]any{
		"claim": map[string]any{
			"reference_id":       string(claim.ReferenceID),
			"incident_type":      string(claim.IncidentType),
			"location_zone":      string(claim.LocationZone),
			"description_length": utf8.RuneCountInString(claim.DamageDescription),
			"image_count":        claim.ImageCount,
			"organization":       claim.Submitter.OrganizationName(),
		},
		"analysis": analysisInput(result),
	}

	rs, err := e.triage.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate triage policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid triage result: not an object")
	}

	raw, ok := data["risk_factor"]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, goerr.New("invalid triage result: risk_factor is not a set")
	}

	factors := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, goerr.New("invalid triage result: risk_factor must be strings", goerr.V("item", item))
		}
		factors = append(factors, s)
	}
	sort.Strings(factors)
	return factors, nil
}

func analysisInput(result *model.FraudAnalysisResult) map[string]any {
	orgs := model.Organizations(result.Matches)
	matches := make([]any, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, map[string]any{
			"reference_id":  string(m.ClaimReferenceID),
			"organization":  m.Organization,
			"incident_type": string(m.IncidentType),
			"location_zone": string(m.LocationZone),
			"overall":       m.Overall,
			"text":          m.Scores.Text,
			"image":         m.Scores.Image,
			"spatial":       m.Scores.Spatial,
			"temporal":      m.Scores.Temporal,
		})
	}

	organizations := make([]any, 0, len(orgs))
	for _, o := range orgs {
		organizations = append(organizations, o)
	}

	return map[string]any{
		"risk_score":     result.RiskScore,
		"risk_level":     string(result.RiskLevel),
		"recommendation": string(result.Recommendation),
		"match_count":    result.MatchCount,
		"matches":        matches,
		"organizations":  organizations,
		"scored_by":      string(result.ScoredBy),
	}
}
