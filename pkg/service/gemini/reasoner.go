package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/crossinsure/crossinsure/pkg/adapter"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/scoring"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// matches beyond this rank are not shown to the model
const promptMatchLimit = 5

//go:embed prompt/analyze.md
var analyzePromptRaw string

var analyzePromptTmpl = template.Must(template.New("analyze").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "N/A"
		}
		return t.Format("2006-01-02")
	},
}).Parse(analyzePromptRaw))

type Reasoner struct {
	client      adapter.Gemini
	temperature float32
}

type ReasonerOption func(*Reasoner)

func WithTemperature(v float32) ReasonerOption {
	return func(r *Reasoner) {
		r.temperature = v
	}
}

func NewReasoner(client adapter.Gemini, opts ...ReasonerOption) *Reasoner {
	r := &Reasoner{
		client:      client,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prompt renders the analysis prompt for an evidence bundle
func Prompt(ev *model.Evidence) (string, error) {
	matches := ev.Matches
	if len(matches) > promptMatchLimit {
		matches = matches[:promptMatchLimit]
	}

	var buf bytes.Buffer
	if err := analyzePromptTmpl.Execute(&buf, map[string]any{
		"IncidentType":      ev.Claim.IncidentType,
		"LocationZone":      ev.Claim.LocationZone,
		"Description":       ev.Claim.DamageDescription,
		"ImageDescriptions": ev.ImageDescriptions,
		"Temporal":          ev.TopTemporal(),
		"Spatial":           ev.TopSpatial(),
		"MatchCount":        len(ev.Matches),
		"Matches":           matches,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute analyze prompt template")
	}
	return buf.String(), nil
}

func (x *Reasoner) Reason(ctx context.Context, ev *model.Evidence) (*model.Judgment, error) {
	prompt, err := Prompt(ev)
	if err != nil {
		return nil, err
	}

	temperature := x.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"fraud_risk_level": {
					Type:        genai.TypeString,
					Description: "Overall fraud risk tier",
					Enum:        []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"},
				},
				"fraud_score": {
					Type:        genai.TypeNumber,
					Description: "Fraud risk score between 0.0 and 1.0",
				},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "Confidence of the assessment between 0.0 and 1.0",
				},
				"red_flags": {
					Type:        genai.TypeArray,
					Description: "Specific red flags or suspicious patterns",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"reasoning": {
					Type:        genai.TypeString,
					Description: "Detailed explanation including company information if cross-company matches found",
				},
				"recommendations": {
					Type:        genai.TypeArray,
					Description: "Recommended next steps for the adjuster",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"cross_company_fraud_detected": {
					Type:        genai.TypeBoolean,
					Description: "Whether the same incident appears to be filed with multiple companies",
				},
			},
			Required: []string{"fraud_risk_level", "fraud_score", "reasoning"},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := x.client.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate fraud analysis")
	}

	text := responseText(resp)
	if text == "" {
		return nil, goerr.New("invalid response structure from gemini")
	}

	j, err := scoring.ParseJudgment(text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse fraud analysis")
	}
	return j, nil
}
